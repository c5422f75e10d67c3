package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildDocumentJSONSchema returns the JSON Schema of a Document as a generic map.
// It is sent to the model as a formatting guide and used locally to check output.
func BuildDocumentJSONSchema() map[string]any {
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	field := map[string]any{
		"type":     "object",
		"required": []string{"field_name", "field_value"},
		"properties": map[string]any{
			"field_name":  map[string]any{"type": "string"},
			"field_value": map[string]any{"type": "string"},
			"confidence":  map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
		},
	}
	section := map[string]any{
		"type":     "object",
		"required": []string{"section_name", "fields"},
		"properties": map[string]any{
			"section_name": map[string]any{"type": "string"},
			"fields":       map[string]any{"type": "array", "items": field},
		},
	}
	table := map[string]any{
		"type":     "object",
		"required": []string{"table_name", "headers", "rows"},
		"properties": map[string]any{
			"table_name": map[string]any{"type": "string"},
			"headers":    stringList,
			"rows":       map[string]any{"type": "array", "items": stringList},
		},
	}
	entities := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"person_names":  stringList,
			"organizations": stringList,
			"dates":         stringList,
			"emails":        stringList,
			"phone_numbers": stringList,
			"addresses":     stringList,
			"id_numbers":    stringList,
			"amounts":       stringList,
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required": []string{
			"document_type", "summary", "sections", "key_entities",
			"signatures_detected", "confidence_score", "unclear_fields",
		},
		"properties": map[string]any{
			"document_type":       map[string]any{"type": "string"},
			"summary":             map[string]any{"type": "string"},
			"sections":            map[string]any{"type": "array", "items": section},
			"tables":              map[string]any{"type": "array", "items": table},
			"key_entities":        entities,
			"signatures_detected": map[string]any{"type": "boolean"},
			"confidence_score":    map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"unclear_fields":      stringList,
		},
	}
}

var compiledDocumentSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(BuildDocumentJSONSchema())
})

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("document.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("document.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// ValidateJSON checks raw JSON against the Document schema.
func ValidateJSON(data []byte) error {
	s, err := compiledDocumentSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Validate checks a Document against its schema.
func Validate(doc Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return ValidateJSON(b)
}
