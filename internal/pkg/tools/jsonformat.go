package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const maxJSONIndent = 8

var ErrEmptyInput = errors.New("input is empty")

// FormatJSON pretty-prints input with indent spaces, or minifies it when
// indent is 0. Key order and number literals are preserved.
func FormatJSON(input string, indent int) (string, error) {
	raw := []byte(strings.TrimSpace(input))
	if len(raw) == 0 {
		return "", ErrEmptyInput
	}
	if !json.Valid(raw) {
		var syntaxErr *json.SyntaxError
		if err := json.Unmarshal(raw, new(json.RawMessage)); errors.As(err, &syntaxErr) {
			return "", fmt.Errorf("invalid JSON at offset %d: %w", syntaxErr.Offset, err)
		}
		return "", errors.New("invalid JSON")
	}

	var buf bytes.Buffer
	if indent <= 0 {
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	if indent > maxJSONIndent {
		indent = maxJSONIndent
	}
	if err := json.Indent(&buf, raw, "", strings.Repeat(" ", indent)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
