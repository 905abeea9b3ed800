package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kelsos/design-survey/internal/models"
)

// ErrInvalidAnswer is returned when the model output is not a valid design answer.
var ErrInvalidAnswer = errors.New("invalid model answer")

const answerSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "$defs": {
    "confidence": {"type": "string", "pattern": "^\\s*(?i:low|medium|high)\\s*$"},
    "list": {
      "type": "object",
      "required": ["suggestions", "confidence"],
      "properties": {
        "suggestions": {"type": "array"},
        "confidence": {"$ref": "#/$defs/confidence"}
      }
    }
  },
  "required": ["background_color", "text_elements", "visual_elements", "review_points", "overall_confidence"],
  "properties": {
    "background_color": {
      "type": "object",
      "required": ["suggestion", "confidence"],
      "properties": {
        "suggestion": {"type": "string"},
        "confidence": {"$ref": "#/$defs/confidence"}
      }
    },
    "text_elements": {"$ref": "#/$defs/list"},
    "visual_elements": {"$ref": "#/$defs/list"},
    "review_points": {"type": "array", "items": {"type": "string"}},
    "overall_confidence": {"$ref": "#/$defs/confidence"}
  }
}`

var answerSchema = mustCompileSchema(answerSchemaJSON, "model-answer.schema.json")

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ParseAnswer decodes the model's text into a ModelAnswer. Markdown code fences around the JSON
// are tolerated; anything that does not match the answer schema is rejected.
func ParseAnswer(content string) (*models.ModelAnswer, error) {
	payload := stripCodeFence(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidAnswer)
	}

	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("%w: not JSON: %v", ErrInvalidAnswer, err)
	}

	if err := answerSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	var answer models.ModelAnswer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	answer.Normalize()

	return &answer, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// drop the language tag, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
