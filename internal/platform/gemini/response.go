package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phrazzld/atlas-api/internal/discovery"
	"github.com/phrazzld/atlas-api/internal/domain"
)

// adminListSchema is the JSON shape expected for administrative levels.
type adminListSchema struct {
	Items []adminItemSchema `json:"items"`
}

type adminItemSchema struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// facilityListSchema is the JSON shape expected for the facility level.
type facilityListSchema struct {
	Items []facilityItemSchema `json:"items"`
}

type facilityItemSchema struct {
	Name       string  `json:"name"`
	Website    string  `json:"website"`
	Confidence float64 `json:"confidence"`
}

// extractJSON isolates the JSON document from a model answer. Models asked
// for strict JSON still occasionally wrap it in a markdown code fence or
// surround it with prose, so the scan tolerates both: fenced blocks are
// unwrapped, otherwise the text between the first '{' and the last '}' is
// taken.
func extractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty response text", discovery.ErrInvalidResponse)
	}

	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		// Skip a language tag like "json" on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			trimmed = strings.TrimSpace(rest[:end])
		} else {
			trimmed = strings.TrimSpace(rest)
		}
	}

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response text", discovery.ErrInvalidResponse)
	}
	return trimmed[start : end+1], nil
}

// parseAdminNodes parses a response text for an administrative level into
// discovery nodes. Entries without a name are rejected.
func parseAdminNodes(text string) ([]discovery.Node, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var parsed adminListSchema
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", discovery.ErrInvalidResponse, err)
	}

	nodes := make([]discovery.Node, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", discovery.ErrInvalidResponse, i)
		}
		nodes = append(nodes, discovery.Node{
			Name: name,
			Code: strings.TrimSpace(item.Code),
		})
	}
	return nodes, nil
}

// parseFacilityNodes parses a response text for the facility level into
// discovery nodes. Confidence values outside [0,1] are clamped rather than
// rejected; a missing name rejects the whole response.
func parseFacilityNodes(text string) ([]discovery.Node, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var parsed facilityListSchema
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", discovery.ErrInvalidResponse, err)
	}

	nodes := make([]discovery.Node, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", discovery.ErrInvalidResponse, i)
		}
		nodes = append(nodes, discovery.Node{
			Name:       name,
			Website:    strings.TrimSpace(item.Website),
			Confidence: clampConfidence(item.Confidence),
		})
	}
	return nodes, nil
}

// parseNodes dispatches to the parser for the given level.
func parseNodes(text string, level domain.Level) ([]discovery.Node, error) {
	if level == domain.LevelFacility {
		return parseFacilityNodes(text)
	}
	return parseAdminNodes(text)
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
