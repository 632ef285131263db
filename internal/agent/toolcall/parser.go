// Package toolcall extracts structured tool invocations from mixed
// natural-language, fenced-code, and marker text produced by models that
// do not support native function calling.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// MaxCommandLength bounds how much of a buffer the parser will scan for a
// single marker before giving up, to avoid pathological backtracking on
// adversarial input.
const MaxCommandLength = 1 << 20

// Call is a single parsed tool invocation in source order.
type Call struct {
	Name string
	Args json.RawMessage
}

var markerPattern = regexp.MustCompile(`\[TOOL_CALL:([A-Za-z_][A-Za-z0-9_]*):(.*?)\]`)

// keywordCallPattern matches `name(key='value', key2=value2, ...)` inside
// fenced code blocks, e.g. ```\nread_file(path="a.py")\n```.
var keywordCallPattern = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\((.*)\)\s*$`)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*\\n)?(.*?)```")

// Extract parses every tool call marker and keyword-call form out of text,
// in source order, deduplicated by (name, JSON-normalized args).
//
// Recognized forms, checked in order:
//  1. [TOOL_CALL:<name>:<json-object>]
//  2. name(key='value', key2=value2, ...) inside a fenced code block, where
//     name is a member of knownTools.
func Extract(text string, knownTools map[string]bool) []Call {
	var calls []Call
	seen := make(map[string]bool)

	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		name, rawArgs := m[1], strings.TrimSpace(m[2])
		if rawArgs == "" {
			rawArgs = "{}"
		}
		var probe json.RawMessage
		if err := json.Unmarshal([]byte(rawArgs), &probe); err != nil {
			continue
		}
		addCall(&calls, seen, name, json.RawMessage(rawArgs))
	}

	for _, block := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		for _, line := range strings.Split(block[1], "\n") {
			m := keywordCallPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name, argsText := m[1], m[2]
			if knownTools != nil && !knownTools[name] {
				continue
			}
			args, ok := parseKeywordArgs(argsText)
			if !ok {
				continue
			}
			encoded, err := json.Marshal(args)
			if err != nil {
				continue
			}
			addCall(&calls, seen, name, encoded)
		}
	}

	return calls
}

func addCall(calls *[]Call, seen map[string]bool, name string, args json.RawMessage) {
	key := name + ":" + normalizeJSON(args)
	if seen[key] {
		return
	}
	seen[key] = true
	*calls = append(*calls, Call{Name: name, Args: args})
}

// normalizeJSON re-marshals args with sorted keys so semantically identical
// calls compare equal regardless of key order or whitespace.
func normalizeJSON(args json.RawMessage) string {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return string(args)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(args)
	}
	return string(out)
}

// parseKeywordArgs parses `key='value', key2=value2, key3=[1,2,3]` into a
// mapping. It prefers literal parsing of booleans, numbers, quoted strings,
// lists, and dicts; falls back to a regex key/value extractor for anything
// that doesn't parse cleanly.
func parseKeywordArgs(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}, true
	}

	args := make(map[string]any)
	parts, ok := splitTopLevel(text, ',')
	if !ok {
		return fallbackKeyValueExtract(text), true
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return fallbackKeyValueExtract(text), true
		}
		key := strings.TrimSpace(part[:eq])
		valText := strings.TrimSpace(part[eq+1:])
		val, ok := parseLiteral(valText)
		if !ok {
			return fallbackKeyValueExtract(text), true
		}
		args[key] = val
	}
	return args, true
}

// splitTopLevel splits s on sep, ignoring separators nested inside quotes,
// brackets, or braces.
func splitTopLevel(s string, sep byte) ([]string, bool) {
	var parts []string
	var depth int
	var inQuote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote && (i == 0 || s[i-1] != '\\') {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == '[' || c == '{' || c == '(':
			depth++
		case c == ']' || c == '}' || c == ')':
			depth--
			if depth < 0 {
				return nil, false
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if inQuote != 0 || depth != 0 {
		return nil, false
	}
	parts = append(parts, s[start:])
	return parts, true
}

func parseLiteral(text string) (any, bool) {
	text = strings.TrimSpace(text)
	switch {
	case text == "true" || text == "True":
		return true, true
	case text == "false" || text == "False":
		return false, true
	case text == "null" || text == "None":
		return nil, true
	case len(text) >= 2 && (text[0] == '\'' || text[0] == '"') && text[len(text)-1] == text[0]:
		return text[1 : len(text)-1], true
	case len(text) >= 2 && text[0] == '[' && text[len(text)-1] == ']':
		items, ok := splitTopLevel(text[1:len(text)-1], ',')
		if !ok {
			return nil, false
		}
		result := make([]any, 0, len(items))
		for _, item := range items {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			v, ok := parseLiteral(item)
			if !ok {
				return nil, false
			}
			result = append(result, v)
		}
		return result, true
	default:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f, true
		}
		return nil, false
	}
}

// fallbackKeyValueExtract handles malformed-but-recognizable arg text via a
// permissive regex, treating every value as a string.
var fallbackKVPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=\s*['"]?([^,'"]*)['"]?`)

func fallbackKeyValueExtract(text string) map[string]any {
	args := make(map[string]any)
	for _, m := range fallbackKVPattern.FindAllStringSubmatch(text, -1) {
		args[m[1]] = strings.TrimSpace(m[2])
	}
	return args
}

// StripMarkers returns text with tool-call markers and tool-only fenced
// blocks removed, for display purposes.
func StripMarkers(text string, knownTools map[string]bool) string {
	cleaned := markerPattern.ReplaceAllString(text, "")
	cleaned = fencedBlockPattern.ReplaceAllStringFunc(cleaned, func(block string) string {
		inner := fencedBlockPattern.FindStringSubmatch(block)
		if inner == nil {
			return block
		}
		lines := strings.Split(inner[1], "\n")
		for _, line := range lines {
			m := keywordCallPattern.FindStringSubmatch(line)
			if m == nil {
				return block
			}
			if knownTools != nil && !knownTools[m[1]] {
				return block
			}
		}
		return ""
	})
	return cleaned
}
