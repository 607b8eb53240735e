package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeFields parses raw model output as a JSON object holding schema.Field.
// Markdown code fences around the object are tolerated.
func decodeFields(raw string, schema *Schema) (map[string]string, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	val, ok := obj[schema.Field]
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformedOutput, schema.Field)
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("%w: field %q is not a string", ErrMalformedOutput, schema.Field)
	}
	return map[string]string{schema.Field: s}, nil
}

// jsonSchema renders schema as a strict JSON Schema object.
func jsonSchema(schema *Schema) map[string]any {
	prop := map[string]any{"type": "string"}
	if schema.FieldDescription != "" {
		prop["description"] = schema.FieldDescription
	}
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{schema.Field: prop},
		"required":             []string{schema.Field},
		"additionalProperties": false,
	}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
