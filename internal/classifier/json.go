package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeStrict unmarshals raw into v, requiring a single JSON object with
// no unknown keys. When the raw text is not directly parsable (chatty
// models wrap JSON in prose or code fences), it falls back to the first
// balanced JSON object substring before failing.
func decodeStrict(raw string, v any) error {
	cleaned := stripFences(raw)

	if err := unmarshalKnown(cleaned, v); err == nil {
		return nil
	}

	obj, ok := firstJSONObject(cleaned)
	if !ok {
		return fmt.Errorf("no JSON object in response: %q", truncateRunes(raw, 120))
	}
	if err := unmarshalKnown(obj, v); err != nil {
		return fmt.Errorf("parsing response object: %w", err)
	}
	return nil
}

func unmarshalKnown(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Anything after the object means the response was not a single object.
	if dec.More() {
		return fmt.Errorf("trailing content after JSON object")
	}
	return nil
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

// firstJSONObject scans for the first balanced {...} substring, honoring
// strings and escapes.
func firstJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
