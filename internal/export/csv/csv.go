// Package csv renders test cases in TestRail's "Test Case (Steps)" import
// layout: one row per step, with title and preconditions only on the first
// row of each case.
package csv

import (
	"regexp"
	"strings"

	gendomain "github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/projects/domain"
)

// ContentType is the media type served for exports.
const ContentType = "text/csv; charset=utf-8"

var (
	header = []string{"Title", "Steps", "Expected Result", "Preconditions"}

	// a step number at the start of the text or after whitespace: "1. ", "12. "
	numberedItem = regexp.MustCompile(`(?:^|\s)(\d+\.\s)`)
	unsafeName   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Case is the part of a test case that is exported.
type Case struct {
	Title          string
	Preconditions  string
	Steps          string
	ExpectedResult string
}

// FromTestCases converts persisted test cases, keeping their order.
func FromTestCases(tcs []domain.TestCase) []Case {
	out := make([]Case, len(tcs))
	for i, tc := range tcs {
		out[i] = Case{Title: tc.Title, Preconditions: tc.Preconditions, Steps: tc.Steps, ExpectedResult: tc.ExpectedResult}
	}
	return out
}

// FromDrafts converts drafts that have a body, keeping their order.
func FromDrafts(drafts []gendomain.TestCaseDraft) []Case {
	out := make([]Case, 0, len(drafts))
	for _, d := range drafts {
		if !d.HasBody() {
			continue
		}
		out = append(out, Case{Title: d.Title, Preconditions: d.Preconditions, Steps: d.Steps, ExpectedResult: d.ExpectedResult})
	}
	return out
}

// Export renders cases as CSV text. Rows are separated by "\n" and every field
// is quoted.
func Export(cases []Case) string {
	var b strings.Builder
	writeRow(&b, header)

	for _, c := range cases {
		steps := SplitIntoItems(c.Steps)
		results := SplitIntoItems(c.ExpectedResult)
		n := max(len(steps), len(results), 1)

		for i := 0; i < n; i++ {
			row := []string{"", at(steps, i), at(results, i), ""}
			if i == 0 {
				row[0] = c.Title
				row[3] = c.Preconditions
			}
			b.WriteByte('\n')
			writeRow(&b, row)
		}
	}
	return b.String()
}

// SplitIntoItems breaks a steps or expected-result field into items. Text with
// line breaks is split per line; otherwise inline "1. ... 2. ..." numbering
// is split with each number kept on its item. Blank text yields no items.
func SplitIntoItems(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.ContainsAny(text, "\r\n") {
		lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
		items := make([]string, 0, len(lines))
		for _, l := range lines {
			if l = strings.TrimSpace(l); l != "" {
				items = append(items, l)
			}
		}
		if len(items) > 1 {
			return items
		}
		return []string{text}
	}

	matches := numberedItem.FindAllStringSubmatchIndex(text, -1)
	if len(matches) > 1 {
		items := make([]string, 0, len(matches)+1)
		if lead := strings.TrimSpace(text[:matches[0][2]]); lead != "" {
			items = append(items, lead)
		}
		for i, m := range matches {
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][2]
			}
			if item := strings.TrimSpace(text[m[2]:end]); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 1 {
			return items
		}
	}
	return []string{text}
}

// Filename derives the download name from a project name.
func Filename(projectName string) string {
	base := unsafeName.ReplaceAllString(strings.ToLower(projectName), "_")
	if base == "" {
		base = "project"
	}
	return base + "_test_cases.csv"
}

func at(items []string, i int) string {
	if i < len(items) {
		return items[i]
	}
	return ""
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
}
