package gemini

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/phrazzld/atlas-api/internal/domain"
)

// provincesPromptText asks for every top-level administrative division.
const provincesPromptText = `You are a gazetteer of administrative divisions.
List every province-level administrative division of the country, including
autonomous regions and directly administered municipalities.

Respond with strict JSON only, no prose, no markdown fences, in exactly this
shape:

{"items": [{"name": "<official name>", "code": "<administrative code, or empty string if unknown>"}]}`

// adminChildrenPromptText asks for the direct administrative children of a
// parent. {{.ParentPath}} is the slash-joined ancestry, e.g.
// "Guangdong/Guangzhou".
const adminChildrenPromptText = `You are a gazetteer of administrative divisions.
List every direct {{.ChildNoun}} of {{.ParentPath}}. Include only divisions
directly contained in it, not deeper descendants.

Respond with strict JSON only, no prose, no markdown fences, in exactly this
shape:

{"items": [{"name": "<official name>", "code": "<administrative code, or empty string if unknown>"}]}`

// facilitiesPromptText asks for the healthcare facilities of a district.
const facilitiesPromptText = `You are a directory of healthcare facilities.
List the hospitals and major healthcare facilities located in {{.ParentPath}}.

For each facility report its official website if one is publicly known, and a
confidence score between 0 and 1 reflecting how certain you are that the
facility exists under that name in that district.

Respond with strict JSON only, no prose, no markdown fences, in exactly this
shape:

{"items": [{"name": "<facility name>", "website": "<URL or empty string>", "confidence": <number 0..1>}]}`

type childPromptData struct {
	ParentPath string
	ChildNoun  string
}

var (
	adminChildrenTemplate = template.Must(template.New("admin_children").Parse(adminChildrenPromptText))
	facilitiesTemplate    = template.Must(template.New("facilities").Parse(facilitiesPromptText))
)

// childNouns names each level as it appears in a children prompt.
var childNouns = map[domain.Level]string{
	domain.LevelCity:     "city-level administrative division",
	domain.LevelDistrict: "district-level administrative division",
}

// buildProvincesPrompt returns the prompt listing all provinces.
func buildProvincesPrompt() string {
	return provincesPromptText
}

// buildChildrenPrompt renders the prompt for the direct children of
// parentPath at the given child level.
func buildChildrenPrompt(parentPath string, level domain.Level) (string, error) {
	if parentPath == "" {
		return "", fmt.Errorf("parent path cannot be empty")
	}

	var tmpl *template.Template
	data := childPromptData{ParentPath: parentPath}

	switch level {
	case domain.LevelCity, domain.LevelDistrict:
		tmpl = adminChildrenTemplate
		data.ChildNoun = childNouns[level]
	case domain.LevelFacility:
		tmpl = facilitiesTemplate
	default:
		return "", fmt.Errorf("level %q has no children prompt", level)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", level, err)
	}
	return buf.String(), nil
}
