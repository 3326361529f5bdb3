package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/atlas-api/internal/config"
	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/domain"
)

// generationTemperature keeps listings factual rather than creative.
const generationTemperature float32 = 0.2

// GeminiSource implements discovery.Source using Google's Gemini API. Each
// fetch is a single GenerateContent call; retry and pacing are the caller's
// responsibility.
type GeminiSource struct {
	logger *slog.Logger
	client *genai.Client
	model  string
}

// NewGeminiSource creates a Gemini-backed hierarchy source from the LLM
// configuration.
func NewGeminiSource(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiSource, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", discovery.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", discovery.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", discovery.ErrInvalidConfig, err)
	}

	return &GeminiSource{
		logger: logger.With("component", "gemini_source"),
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// FetchProvinces implements discovery.Source.FetchProvinces.
func (s *GeminiSource) FetchProvinces(ctx context.Context) ([]discovery.Node, error) {
	return s.fetch(ctx, buildProvincesPrompt(), domain.LevelProvince)
}

// FetchChildren implements discovery.Source.FetchChildren.
func (s *GeminiSource) FetchChildren(
	ctx context.Context,
	parentPath string,
	level domain.Level,
) ([]discovery.Node, error) {
	prompt, err := buildChildrenPrompt(parentPath, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", discovery.ErrPermanent, err)
	}
	return s.fetch(ctx, prompt, level)
}

// fetch makes one GenerateContent call and parses the answer into nodes for
// the given level.
func (s *GeminiSource) fetch(ctx context.Context, prompt string, level domain.Level) ([]discovery.Node, error) {
	s.logger.DebugContext(ctx, "calling gemini",
		"model", s.model,
		"level", level,
		"prompt_length", len(prompt))

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(generationTemperature),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), genConfig)
	if err != nil {
		classified := classifyAPIError(err)
		s.logger.ErrorContext(ctx, "gemini call failed",
			"level", level,
			"error", err,
			"transient", discovery.IsTransient(classified))
		return nil, classified
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	nodes, err := parseNodes(text, level)
	if err != nil {
		s.logger.WarnContext(ctx, "unparseable gemini response",
			"level", level,
			"response_length", len(text),
			"error", err)
		return nil, err
	}

	s.logger.DebugContext(ctx, "gemini call succeeded",
		"level", level,
		"node_count", len(nodes))
	return nodes, nil
}

// responseText pulls the concatenated text out of the first candidate,
// rejecting empty and safety-blocked responses.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", discovery.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", discovery.ErrContentBlocked
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", discovery.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text parts in response", discovery.ErrInvalidResponse)
	}
	return sb.String(), nil
}

// classifyAPIError maps a GenerateContent error into the discovery taxonomy.
// Rate limits and server-side failures are transient; other API rejections
// are permanent. Errors without an API status code, typically network-level
// failures, are treated as transient. Context errors pass through unchanged
// so the caller can distinguish cancellation from deadline expiry.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: gemini API error %d: %s", discovery.ErrTransient, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: gemini API error %d: %s", discovery.ErrPermanent, apiErr.Code, apiErr.Message)
	}

	return fmt.Errorf("%w: %v", discovery.ErrTransient, err)
}
