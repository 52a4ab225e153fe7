package main

import (
	"context"
	"flag"
	"fmt"
	"time"
)

// RunExport writes a stored project as a TestRail CSV.
func RunExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "", "output file; defaults to the project's export filename")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected a project id")
	}

	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	db, err := e.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	export, err := e.projectService(db).ExportProject(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = export.Filename
	}
	if err := writeOutput(path, export.Content); err != nil {
		return err
	}
	fmt.Println(styles.ok.Render(fmt.Sprintf("exported %d test cases to %s", export.TestCaseCount, path)))
	return nil
}
