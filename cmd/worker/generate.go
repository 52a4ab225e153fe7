package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/casegen/casegen-backend/internal/export/csv"
	"github.com/casegen/casegen-backend/internal/generation/completion"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	"github.com/casegen/casegen-backend/internal/generation/service"
)

const progressInterval = 200 * time.Millisecond

// RunGenerate turns a documentation file into test cases. Drafts are kept in
// DRAFT_DIR, so an interrupted run resumes where it stopped.
func RunGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	name := fs.String("name", "", "project name; defaults to the file name")
	out := fs.String("out", "", "write a TestRail CSV to this file (- for stdout)")
	offline := fs.Bool("offline", false, "skip the database and only write the CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected a documentation file")
	}
	docPath := fs.Arg(0)

	doc, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("read documentation: %w", err)
	}
	projectName := strings.TrimSpace(*name)
	if projectName == "" {
		projectName = strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	}

	e, err := loadEnv(true)
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	store, err := draftstore.NewFileStore(e.cfg.Drafts.Dir)
	if err != nil {
		return err
	}
	completer, err := completion.New(
		completion.NewOpenAI(e.cfg.AI.APIKey, e.cfg.AI.BaseURL),
		completion.Config{
			Model:             e.cfg.AI.Model,
			Temperature:       e.cfg.AI.Temperature,
			MaxTokens:         e.cfg.AI.MaxTokens,
			Timeout:           e.cfg.AI.Timeout,
			RequestsPerMinute: e.cfg.AI.RequestsPerMinute,
		},
		e.logger,
	)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Store:     store,
		Titles:    service.NewTitleGenerator(completer, e.logger),
		Details:   service.NewDetailGenerator(completer, e.logger),
		Logger:    e.logger,
		SaveDelay: e.cfg.Drafts.SaveDelay,
	}
	if !*offline {
		db, err := e.openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Gateway = e.projectService(db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := generateJob{
		orch:    service.NewOrchestrator(draftKey(docPath), deps),
		store:   store,
		input:   service.StartInput{ProjectName: projectName, Documentation: string(doc)},
		out:     *out,
		offline: *offline,
	}
	return job.run(ctx, os.Stdout)
}

type generateJob struct {
	orch    *service.Orchestrator
	store   draftstore.Store
	input   service.StartInput
	out     string
	offline bool
}

func (j generateJob) run(ctx context.Context, w io.Writer) error {
	origin, err := j.orch.Start(ctx, j.input)
	if err != nil {
		return err
	}
	defer j.orch.Close(context.WithoutCancel(ctx))

	fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("%s (%s)", j.input.ProjectName, origin)))

	if err := j.generate(ctx, w); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(w, styles.muted.Render("interrupted; drafts saved, run again to resume"))
		}
		return err
	}

	st := j.orch.State()
	fmt.Fprintln(w, summaryBox(st.Progress))

	if j.out != "" || j.offline {
		path := j.out
		if path == "" {
			path = csv.Filename(j.input.ProjectName)
		}
		if err := writeOutput(path, csv.Export(csv.FromDrafts(st.Snapshot.TestCases))); err != nil {
			return err
		}
		if path != "-" {
			fmt.Fprintln(w, styles.ok.Render("wrote "+path))
		}
	}

	if j.offline {
		return j.store.Remove(ctx, j.orch.Key())
	}

	res, err := j.orch.Finish(ctx)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("saved %d test cases to project %s", res.TestCaseCount, res.ProjectID)
	if res.Excluded > 0 {
		msg += fmt.Sprintf(" (%d without a body skipped)", res.Excluded)
	}
	fmt.Fprintln(w, styles.ok.Render(msg))
	return nil
}

// generate runs the loop and prints each draft once it settles.
func (j generateJob) generate(ctx context.Context, w io.Writer) error {
	done := make(chan error, 1)
	go func() { done <- j.orch.Run(ctx) }()

	reported := map[int]bool{}
	report := func() {
		st := j.orch.State()
		for _, d := range st.Snapshot.TestCases {
			if reported[d.OrderIndex] {
				continue
			}
			if d.Status == domain.StatusCompleted || d.Status == domain.StatusError {
				reported[d.OrderIndex] = true
				fmt.Fprintln(w, draftLine(d, st.Progress.Total))
			}
		}
	}

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			report()
			return err
		case <-ticker.C:
			report()
		}
	}
}

func draftKey(docPath string) string {
	base := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	return "cli-" + strings.ToLower(base)
}
