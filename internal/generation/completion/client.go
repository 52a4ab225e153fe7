// Package completion sends title and detail prompts to an OpenAI-compatible
// chat completion endpoint and validates the JSON that comes back.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/logging"
	"github.com/casegen/casegen-backend/internal/metrics"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kind names the two request shapes the client supports.
type Kind string

const (
	KindTitles  Kind = "titles"
	KindDetails Kind = "details"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 60 * time.Second
)

// ChatCompleter is the part of *openai.Client the completion client needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config controls the outbound request.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// RequestsPerMinute paces outbound calls; zero disables pacing.
	RequestsPerMinute int
}

// TitlesRequest asks for test case titles covering documentation.
type TitlesRequest struct {
	Documentation string `json:"documentation"`
	ProjectName   string `json:"projectName,omitempty"`
}

// DetailsRequest asks for the body of Titles[Index].
type DetailsRequest struct {
	Title         string   `json:"title"`
	Titles        []string `json:"titles"`
	Index         int      `json:"testCaseIndex"`
	Documentation string   `json:"documentation,omitempty"`
	ProjectName   string   `json:"projectName,omitempty"`
}

// Client is stateless between calls apart from the pacing limiter.
type Client struct {
	api     ChatCompleter
	cfg     Config
	prompts *prompts
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAI builds a go-openai client. An empty baseURL keeps the OpenAI default.
func NewOpenAI(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// New creates a Client over api.
func New(api ChatCompleter, cfg Config, logger *zap.Logger) (*Client, error) {
	if api == nil {
		return nil, errors.New("completion: api client is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p, err := loadPrompts(promptsYAML)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{api: api, cfg: cfg, prompts: p, limiter: limiter, logger: logger}, nil
}

// CompleteTitles returns the titles array from the model. Count limits are
// left to the caller; only the shape is checked here.
func (c *Client) CompleteTitles(ctx context.Context, req TitlesRequest) ([]string, error) {
	const op = "completion.titles"
	if err := ValidateTitlesRequest(req); err != nil {
		return nil, err
	}
	system, user, err := c.prompts.renderTitles(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err)
	}

	fields, err := c.complete(ctx, KindTitles, system, user)
	if err != nil {
		return nil, err
	}

	raw, ok := fields["titles"]
	if !ok {
		return nil, apperrors.New(apperrors.KindInvalidFormat, op, `response is missing "titles"`)
	}
	var titles []string
	if err := json.Unmarshal(raw, &titles); err != nil || titles == nil {
		return nil, apperrors.New(apperrors.KindInvalidFormat, op, `"titles" must be an array of strings`)
	}
	return titles, nil
}

// CompleteDetails returns preconditions, steps and expected result for one
// title. All three must be present non-empty strings.
func (c *Client) CompleteDetails(ctx context.Context, req DetailsRequest) (domain.Details, error) {
	const op = "completion.details"
	if err := ValidateDetailsRequest(req); err != nil {
		return domain.Details{}, err
	}
	system, user, err := c.prompts.renderDetails(req)
	if err != nil {
		return domain.Details{}, apperrors.Wrap(apperrors.KindInternal, op, err)
	}

	fields, err := c.complete(ctx, KindDetails, system, user)
	if err != nil {
		return domain.Details{}, err
	}

	var d domain.Details
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"preconditions", &d.Preconditions},
		{"steps", &d.Steps},
		{"expected_result", &d.ExpectedResult},
	} {
		raw, ok := fields[f.key]
		if !ok {
			return domain.Details{}, apperrors.Newf(apperrors.KindInvalidFormat, op, "response is missing %q", f.key)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return domain.Details{}, apperrors.Newf(apperrors.KindInvalidFormat, op, "%q must be a string", f.key)
		}
		if strings.TrimSpace(*f.dst) == "" {
			return domain.Details{}, apperrors.Newf(apperrors.KindInvalidFormat, op, "%q must not be empty", f.key)
		}
	}
	return d, nil
}

// complete sends one chat completion and decodes its content as a JSON object.
func (c *Client) complete(ctx context.Context, kind Kind, system, user string) (map[string]json.RawMessage, error) {
	op := "completion." + string(kind)
	log := logging.WithContext(ctx, c.logger).With(zap.String("kind", string(kind)))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	duration := time.Since(start)

	fields, err := decodeResponse(op, resp, err)
	if err != nil {
		metrics.RecordCompletion(string(kind), string(apperrors.KindOf(err)), duration)
		log.Warn("completion_failed",
			zap.Duration("duration", duration),
			zap.String("error_kind", string(apperrors.KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	metrics.RecordCompletion(string(kind), "success", duration)
	log.Info("completion_succeeded",
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return fields, nil
}

func decodeResponse(op string, resp openai.ChatCompletionResponse, callErr error) (map[string]json.RawMessage, error) {
	if callErr != nil {
		return nil, classify(op, callErr)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.KindAPI, op, "response contained no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, apperrors.New(apperrors.KindAPI, op, "response content is empty")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// valid JSON, but not an object
			return nil, apperrors.New(apperrors.KindInvalidFormat, op, "response is not a JSON object")
		}
		return nil, apperrors.Wrap(apperrors.KindParse, op, err)
	}
	if fields == nil {
		return nil, apperrors.New(apperrors.KindInvalidFormat, op, "response is not a JSON object")
	}
	return fields, nil
}

// classify maps a go-openai call error onto the error taxonomy.
func classify(op string, err error) error {
	var (
		apiErr  *openai.APIError
		reqErr  *openai.RequestError
		netErr  net.Error
		urlErr  *url.Error
		synErr  *json.SyntaxError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.KindNetwork, op, err)
	case errors.As(err, &apiErr):
		return &apperrors.Error{Kind: apperrors.KindAPI, Op: op, Msg: fmt.Sprintf("provider returned status %d", apiErr.HTTPStatusCode), Err: err}
	case errors.As(err, &reqErr):
		return &apperrors.Error{Kind: apperrors.KindAPI, Op: op, Msg: fmt.Sprintf("provider returned status %d", reqErr.HTTPStatusCode), Err: err}
	case errors.As(err, &netErr), errors.As(err, &urlErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperrors.Wrap(apperrors.KindNetwork, op, err)
	case errors.As(err, &synErr), errors.As(err, &typeErr):
		return apperrors.Wrap(apperrors.KindParse, op, err)
	default:
		return apperrors.Wrap(apperrors.KindAPI, op, err)
	}
}

// ValidateTitlesRequest checks documentation and project name bounds.
func ValidateTitlesRequest(req TitlesRequest) error {
	const op = "completion.titles"
	n := utf8.RuneCountInString(req.Documentation)
	if n < domain.MinDocumentationLength || n > domain.MaxDocumentationLength {
		return apperrors.Newf(apperrors.KindValidation, op,
			"documentation must be between %d and %d characters, got %d",
			domain.MinDocumentationLength, domain.MaxDocumentationLength, n)
	}
	if utf8.RuneCountInString(req.ProjectName) > domain.MaxProjectNameLength {
		return apperrors.Newf(apperrors.KindValidation, op,
			"project name cannot exceed %d characters", domain.MaxProjectNameLength)
	}
	return nil
}

// ValidateDetailsRequest checks the title, the context list and the index.
func ValidateDetailsRequest(req DetailsRequest) error {
	const op = "completion.details"
	n := utf8.RuneCountInString(req.Title)
	if n < domain.MinDetailTitleLength || n > domain.MaxTitleLength {
		return apperrors.Newf(apperrors.KindValidation, op,
			"title must be between %d and %d characters, got %d",
			domain.MinDetailTitleLength, domain.MaxTitleLength, n)
	}
	if len(req.Titles) == 0 || len(req.Titles) > domain.MaxContextTitles {
		return apperrors.Newf(apperrors.KindValidation, op,
			"title list must have between 1 and %d entries", domain.MaxContextTitles)
	}
	if req.Index < 0 || req.Index >= len(req.Titles) {
		return apperrors.Newf(apperrors.KindValidation, op,
			"index %d is outside the title list", req.Index)
	}
	if utf8.RuneCountInString(req.Documentation) > domain.MaxDocumentationLength {
		return apperrors.Newf(apperrors.KindValidation, op,
			"documentation cannot exceed %d characters", domain.MaxDocumentationLength)
	}
	return nil
}
