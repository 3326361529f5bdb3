package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/domain"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare JSON",
			input: `{"items": []}`,
			want:  `{"items": []}`,
		},
		{
			name:  "fenced with language tag",
			input: "```json\n{\"items\": [{\"name\": \"Guangdong\"}]}\n```",
			want:  `{"items": [{"name": "Guangdong"}]}`,
		},
		{
			name:  "fenced without language tag",
			input: "```\n{\"items\": []}\n```",
			want:  `{"items": []}`,
		},
		{
			name:  "unterminated fence",
			input: "```json\n{\"items\": []}",
			want:  `{"items": []}`,
		},
		{
			name:  "surrounded by prose",
			input: "Here is the listing you asked for:\n{\"items\": []}\nHope that helps!",
			want:  `{"items": []}`,
		},
		{
			name:    "empty text",
			input:   "   \n",
			wantErr: true,
		},
		{
			name:    "no JSON object",
			input:   "I cannot answer that.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, discovery.ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAdminNodes(t *testing.T) {
	t.Parallel()

	nodes, err := parseAdminNodes(`{"items": [
		{"name": "Guangdong", "code": "44"},
		{"name": " Sichuan ", "code": ""}
	]}`)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, discovery.Node{Name: "Guangdong", Code: "44"}, nodes[0])
	assert.Equal(t, discovery.Node{Name: "Sichuan"}, nodes[1])
}

func TestParseAdminNodesRejectsMissingName(t *testing.T) {
	t.Parallel()

	_, err := parseAdminNodes(`{"items": [{"name": "", "code": "44"}]}`)
	assert.ErrorIs(t, err, discovery.ErrInvalidResponse)
}

func TestParseAdminNodesRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := parseAdminNodes(`{"items": [{"name": "Guangdong"}`)
	assert.ErrorIs(t, err, discovery.ErrInvalidResponse)
	assert.ErrorIs(t, err, discovery.ErrPermanent)
}

func TestParseAdminNodesEmptyListIsValid(t *testing.T) {
	t.Parallel()

	nodes, err := parseAdminNodes(`{"items": []}`)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestParseFacilityNodes(t *testing.T) {
	t.Parallel()

	nodes, err := parseFacilityNodes(`{"items": [
		{"name": "Central Hospital", "website": "https://example.org", "confidence": 0.9},
		{"name": "Overconfident Clinic", "website": "", "confidence": 1.7},
		{"name": "Doubtful Clinic", "confidence": -0.3}
	]}`)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "https://example.org", nodes[0].Website)
	assert.InDelta(t, 0.9, nodes[0].Confidence, 0.001)
	assert.Equal(t, 1.0, nodes[1].Confidence)
	assert.Equal(t, 0.0, nodes[2].Confidence)
}

func TestParseNodesDispatchesByLevel(t *testing.T) {
	t.Parallel()

	facilityJSON := `{"items": [{"name": "Central Hospital", "website": "https://example.org", "confidence": 0.5}]}`

	nodes, err := parseNodes(facilityJSON, domain.LevelFacility)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", nodes[0].Website)

	// The same payload through the admin parser drops facility fields.
	nodes, err = parseNodes(facilityJSON, domain.LevelDistrict)
	require.NoError(t, err)
	assert.Empty(t, nodes[0].Website)
	assert.Zero(t, nodes[0].Confidence)
}

func TestBuildChildrenPrompt(t *testing.T) {
	t.Parallel()

	prompt, err := buildChildrenPrompt("Guangdong", domain.LevelCity)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Guangdong")
	assert.Contains(t, prompt, "city-level administrative division")

	prompt, err = buildChildrenPrompt("Guangdong/Guangzhou", domain.LevelDistrict)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Guangdong/Guangzhou")
	assert.Contains(t, prompt, "district-level administrative division")

	prompt, err = buildChildrenPrompt("Guangdong/Guangzhou/Tianhe", domain.LevelFacility)
	require.NoError(t, err)
	assert.Contains(t, prompt, "healthcare facilities")
	assert.Contains(t, prompt, "confidence")
}

func TestBuildChildrenPromptRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := buildChildrenPrompt("", domain.LevelCity)
	assert.Error(t, err)

	_, err = buildChildrenPrompt("Guangdong", domain.LevelProvince)
	assert.Error(t, err)
}

func TestClassifyAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{
			name:          "rate limited",
			err:           genai.APIError{Code: 429, Message: "quota exceeded"},
			wantTransient: true,
		},
		{
			name:          "server error",
			err:           genai.APIError{Code: 503, Message: "unavailable"},
			wantTransient: true,
		},
		{
			name:          "bad request",
			err:           genai.APIError{Code: 400, Message: "invalid argument"},
			wantTransient: false,
		},
		{
			name:          "unauthorized",
			err:           genai.APIError{Code: 401, Message: "bad key"},
			wantTransient: false,
		},
		{
			name:          "wrapped API error",
			err:           fmt.Errorf("call failed: %w", genai.APIError{Code: 500}),
			wantTransient: true,
		},
		{
			name:          "network error without status",
			err:           errors.New("connection reset by peer"),
			wantTransient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classifyAPIError(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.wantTransient, discovery.IsTransient(got))
			if !tt.wantTransient {
				assert.ErrorIs(t, got, discovery.ErrPermanent)
			}
		})
	}
}

func TestClassifyAPIErrorPassesThroughContextErrors(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, classifyAPIError(context.Canceled), context.Canceled)
	assert.ErrorIs(t, classifyAPIError(context.DeadlineExceeded), context.DeadlineExceeded)
	assert.NoError(t, classifyAPIError(nil))
}

func TestResponseText(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: `{"items":`}, {Text: ` []}`}},
				},
			},
		},
	}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"items": []}`, text)
}

func TestResponseTextRejectsBadResponses(t *testing.T) {
	t.Parallel()

	_, err := responseText(nil)
	assert.ErrorIs(t, err, discovery.ErrInvalidResponse)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, discovery.ErrInvalidResponse)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
	})
	assert.ErrorIs(t, err, discovery.ErrContentBlocked)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	assert.ErrorIs(t, err, discovery.ErrInvalidResponse)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: ""}}}}},
	})
	assert.ErrorIs(t, err, discovery.ErrInvalidResponse)
}

func TestNewGeminiSourceValidation(t *testing.T) {
	t.Parallel()

	logger := newTestLogger()

	_, err := NewGeminiSource(context.Background(), nil, validLLMConfig())
	assert.Error(t, err)

	cfg := validLLMConfig()
	cfg.GeminiAPIKey = ""
	_, err = NewGeminiSource(context.Background(), logger, cfg)
	assert.ErrorIs(t, err, discovery.ErrInvalidConfig)

	cfg = validLLMConfig()
	cfg.ModelName = ""
	_, err = NewGeminiSource(context.Background(), logger, cfg)
	assert.ErrorIs(t, err, discovery.ErrInvalidConfig)
}

func TestProvincesPromptDemandsStrictJSON(t *testing.T) {
	t.Parallel()

	prompt := buildProvincesPrompt()
	assert.Contains(t, prompt, "strict JSON")
	assert.True(t, strings.Contains(prompt, `"items"`))
}
