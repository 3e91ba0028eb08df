package scrub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// recognizerSchema is the JSON schema every recognizer table must satisfy.
// Kept strict on the fields the engine depends on (entity, kind, min_tier)
// and permissive on extensions so operator files can carry annotations.
const recognizerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["recognizers"],
  "properties": {
    "recognizers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "supported_entity", "type", "min_tier"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "supported_entity": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
          "type": {"enum": ["pattern", "deny_list", "model"]},
          "min_tier": {"type": "string", "pattern": "^[Cc][1-4]$"},
          "regex": {"type": "string"},
          "deny_list": {"type": "array", "items": {"type": "string"}},
          "model_ref": {"type": "string"},
          "score": {"type": "number", "minimum": 0, "maximum": 1},
          "context": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// ValidateRecognizerYAML checks recognizer YAML bytes against the schema.
// The YAML is first converted to JSON because gojsonschema operates on JSON.
func ValidateRecognizerYAML(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: recognizer YAML is not parsable: %v", ErrConfiguration, err)
	}

	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: converting recognizer YAML to JSON: %v", ErrConfiguration, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(recognizerSchema)
	documentLoader := gojsonschema.NewBytesLoader(jsonBytes)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("%w: validating recognizer YAML: %v", ErrConfiguration, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: recognizer table failed schema validation: %s", ErrConfiguration, strings.Join(msgs, "; "))
	}

	return nil
}
