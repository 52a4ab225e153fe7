package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/casegen/casegen-backend/internal/generation/domain"
)

var styles = struct {
	title   lipgloss.Style
	ok      lipgloss.Style
	failed  lipgloss.Style
	muted   lipgloss.Style
	summary lipgloss.Style
}{
	title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
	ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	summary: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
}

func draftLine(d domain.TestCaseDraft, total int) string {
	pos := styles.muted.Render(fmt.Sprintf("[%d/%d]", d.OrderIndex+1, total))
	switch d.Status {
	case domain.StatusCompleted:
		return fmt.Sprintf("%s %s %s", pos, styles.ok.Render("ok "), d.Title)
	case domain.StatusError:
		return fmt.Sprintf("%s %s %s %s", pos, styles.failed.Render("err"), d.Title, styles.muted.Render(d.ErrorMessage))
	default:
		return fmt.Sprintf("%s %s %s", pos, styles.muted.Render(string(d.Status)), d.Title)
	}
}

func summaryBox(p domain.Progress) string {
	body := fmt.Sprintf("%d test cases: %s, %s",
		p.Total,
		styles.ok.Render(fmt.Sprintf("%d completed", p.Completed)),
		styles.failed.Render(fmt.Sprintf("%d failed", p.Failed)))
	return styles.summary.Render(body)
}

func writeOutput(path, content string) error {
	if path == "-" {
		_, err := fmt.Fprintln(os.Stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
