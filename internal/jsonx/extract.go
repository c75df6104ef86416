// Package jsonx pulls structured JSON out of free-form model output.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when no parseable JSON value is found.
var ErrNoJSON = errors.New("no JSON object or array found in model output")

// Extract returns the longest balanced {...} or [...] span in text that
// parses as JSON, decoded into a generic value.
func Extract(text string) (any, error) {
	raw, err := ExtractRaw(text)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode extracted JSON: %w", err)
	}
	return v, nil
}

// ExtractInto decodes the extracted JSON into dst.
func ExtractInto(text string, dst any) error {
	raw, err := ExtractRaw(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode extracted JSON: %w", err)
	}
	return nil
}

// ExtractRaw returns the raw text of the selected JSON span.
func ExtractRaw(text string) (string, error) {
	t := stripFences(text)
	if strings.TrimSpace(t) == "" {
		return "", ErrNoJSON
	}

	best := ""
	for _, c := range candidates(t) {
		if len(c) <= len(best) {
			continue
		}
		if !gjson.Valid(c) {
			continue
		}
		best = c
	}
	if best == "" {
		return "", fmt.Errorf("%w: %q", ErrNoJSON, truncate(strings.TrimSpace(t), 200))
	}
	return best, nil
}

func stripFences(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// candidates returns every balanced span starting at an opening bracket.
// Brackets inside string literals are ignored; strings are only tracked once
// a span is open, so stray quotes in prose do not hide a later object.
func candidates(s string) []string {
	var out []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if end := matchSpan(s, i); end > i {
			out = append(out, s[i:end+1])
		}
	}
	return out
}

func matchSpan(s string, start int) int {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
