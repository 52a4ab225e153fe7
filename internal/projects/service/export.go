package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/export/csv"
	"github.com/casegen/casegen-backend/internal/logging"
	"github.com/casegen/casegen-backend/internal/metrics"
)

// Export is a rendered CSV download.
type Export struct {
	Filename      string
	Content       string
	TestCaseCount int
}

// ExportProject renders a project's test cases in TestRail's CSV layout.
func (s *ProjectService) ExportProject(ctx context.Context, id string) (*Export, error) {
	start := time.Now()
	p, err := s.GetProjectWithTestCases(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &Export{
		Filename:      csv.Filename(p.Name),
		Content:       csv.Export(csv.FromTestCases(p.TestCases)),
		TestCaseCount: len(p.TestCases),
	}
	metrics.RecordExport()
	logging.WithContext(ctx, s.logger).Info("export_success",
		zap.String("project_id", p.ID),
		zap.Int("test_case_count", out.TestCaseCount),
		zap.Int("csv_size", len(out.Content)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}
