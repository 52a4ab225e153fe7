package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/generation/completion"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/logging"
)

// TitleCompleter is the completion call behind TitleGenerator.
type TitleCompleter interface {
	CompleteTitles(ctx context.Context, req completion.TitlesRequest) ([]string, error)
}

// DetailCompleter is the completion call behind DetailGenerator.
type DetailCompleter interface {
	CompleteDetails(ctx context.Context, req completion.DetailsRequest) (domain.Details, error)
}

// TitleGenerator turns documentation into an ordered list of test case titles.
type TitleGenerator struct {
	client TitleCompleter
	logger *zap.Logger
}

// NewTitleGenerator creates a new TitleGenerator
func NewTitleGenerator(client TitleCompleter, logger *zap.Logger) *TitleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitleGenerator{client: client, logger: logger}
}

// GenerateTitles validates input before any network call, then checks the
// model's answer itself: 1..20 non-blank titles of at most 200 characters.
func (g *TitleGenerator) GenerateTitles(ctx context.Context, documentation, projectName string) ([]string, error) {
	const op = "generation.titles"
	req := completion.TitlesRequest{Documentation: documentation, ProjectName: strings.TrimSpace(projectName)}
	if err := completion.ValidateTitlesRequest(req); err != nil {
		return nil, err
	}

	log := logging.WithContext(ctx, g.logger)
	titles, err := g.client.CompleteTitles(ctx, req)
	if err != nil {
		log.Error("title_generation_failed", zap.Error(err), zap.String("error_kind", string(apperrors.KindOf(err))))
		return nil, err
	}

	out, err := checkTitles(op, titles)
	if err != nil {
		log.Error("title_generation_invalid", zap.Error(err), zap.Int("count", len(titles)))
		return nil, err
	}
	log.Info("titles_generated", zap.Int("count", len(out)))
	return out, nil
}

func checkTitles(op string, titles []string) ([]string, error) {
	if len(titles) < domain.MinTitles || len(titles) > domain.MaxTitles {
		return nil, apperrors.Newf(apperrors.KindInvalidFormat, op,
			"expected between %d and %d titles, got %d", domain.MinTitles, domain.MaxTitles, len(titles))
	}
	out := make([]string, len(titles))
	for i, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, apperrors.Newf(apperrors.KindInvalidFormat, op, "title %d is blank", i+1)
		}
		if utf8.RuneCountInString(t) > domain.MaxTitleLength {
			return nil, apperrors.Newf(apperrors.KindInvalidFormat, op,
				"title %d exceeds %d characters", i+1, domain.MaxTitleLength)
		}
		out[i] = t
	}
	return out, nil
}

// DetailInput identifies one title within the suite being generated.
type DetailInput struct {
	Title         string
	OrderIndex    int
	Titles        []string
	Documentation string
	ProjectName   string
}

// Total is the number of test cases in the suite.
func (in DetailInput) Total() int { return len(in.Titles) }

// DetailGenerator writes the body of a single test case. Titles before
// OrderIndex are given to the model as already covered.
type DetailGenerator struct {
	client DetailCompleter
	logger *zap.Logger
}

// NewDetailGenerator creates a new DetailGenerator
func NewDetailGenerator(client DetailCompleter, logger *zap.Logger) *DetailGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailGenerator{client: client, logger: logger}
}

// GenerateDetails returns preconditions, steps and expected result for in.Title.
func (g *DetailGenerator) GenerateDetails(ctx context.Context, in DetailInput) (domain.Details, error) {
	req := completion.DetailsRequest{
		Title:         strings.TrimSpace(in.Title),
		Titles:        in.Titles,
		Index:         in.OrderIndex,
		Documentation: in.Documentation,
		ProjectName:   in.ProjectName,
	}
	if err := completion.ValidateDetailsRequest(req); err != nil {
		return domain.Details{}, err
	}

	details, err := g.client.CompleteDetails(ctx, req)
	if err != nil {
		logging.WithContext(ctx, g.logger).Warn("detail_generation_failed",
			zap.Int("index", in.OrderIndex),
			zap.Int("total", in.Total()),
			zap.String("error_kind", string(apperrors.KindOf(err))),
			zap.Error(err))
		return domain.Details{}, err
	}
	return details, nil
}
