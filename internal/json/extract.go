// Package json pulls a JSON object out of a model reply.
//
// Replies to structured-output requests are usually bare JSON, but models
// still wrap them in code fences or surround them with prose. ExtractJSON
// accepts all three shapes.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const previewLen = 100

// ExtractJSON returns the first JSON object found in reply, as raw text.
// A fenced block (```json or ```) is preferred over the surrounding prose.
// Braces inside string literals do not affect matching.
func ExtractJSON(reply string) (string, error) {
	candidates := []string{strings.TrimSpace(reply)}
	if fenced, ok := fencedBlock(reply); ok {
		candidates = append([]string{fenced}, candidates...)
	}

	for _, text := range candidates {
		if json.Valid([]byte(text)) && strings.HasPrefix(text, "{") {
			return text, nil
		}
		if obj, ok := firstObject(text); ok {
			return obj, nil
		}
	}
	return "", fmt.Errorf("no JSON object in reply: %q", preview(reply))
}

// Decode extracts the first JSON object in reply and unmarshals it into T.
func Decode[T any](reply string) (T, error) {
	var out T
	raw, err := ExtractJSON(reply)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode reply: %w", err)
	}
	return out, nil
}

// fencedBlock returns the body of the first markdown code fence.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	body := s[start+3:]
	// Drop the info string (json, JSON, javascript...).
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

// firstObject scans for a balanced {...} that parses as JSON. Each opening
// brace is tried in turn, so leading prose like "{note}" is skipped.
func firstObject(s string) (string, bool) {
	for from := 0; from < len(s); {
		i := strings.IndexByte(s[from:], '{')
		if i < 0 {
			return "", false
		}
		start := from + i
		if end, ok := matchBrace(s, start); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		from = start + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
