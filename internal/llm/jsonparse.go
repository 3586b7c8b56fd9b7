package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled repairs for common model output mistakes.
var (
	missingCommaBeforeKeyRegex  = regexp.MustCompile(`(")\s*\n\s*("[\w][^"]*"\s*:)`)
	missingCommaAfterValueRegex = regexp.MustCompile(`(\d|true|false|null)\s*\n\s*("[\w][^"]*"\s*:)`)
	missingCommaAfterBraceRegex = regexp.MustCompile(`([}\]])\s*\n?\s*("[\w])`)
	trailingCommaRegex          = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteKeyRegex         = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)
)

// ErrNoJSON is returned when a response contains no JSON value at all.
var ErrNoJSON = errors.New("no JSON found in response")

// ExtractJSON pulls the first JSON object or array out of a model response.
// Markdown fences and trailing prose are ignored; light syntax repair is
// attempted before giving up. A response that is exactly one JSON string is
// returned as that string value unless it wraps an object or array.
func ExtractJSON(response string) (json.RawMessage, error) {
	cleaned := stripFences(response)
	if cleaned == "" {
		return nil, ErrNoJSON
	}

	// A JSON-encoded string that itself holds JSON.
	if cleaned[0] == '"' {
		var inner string
		if err := json.Unmarshal([]byte(cleaned), &inner); err == nil && inner != cleaned {
			if raw, err := ExtractJSON(inner); err == nil {
				return raw, nil
			}
			return decodeFirst(cleaned)
		}
	}

	idx := strings.IndexAny(cleaned, "{[")
	if idx == -1 {
		return nil, ErrNoJSON
	}

	body := cleaned[idx:]
	raw, err := decodeFirst(body)
	if err == nil {
		return raw, nil
	}
	if repaired := repairJSON(body); repaired != body {
		if raw, rerr := decodeFirst(repaired); rerr == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("parse JSON: %w", err)
}

func decodeFirst(s string) (json.RawMessage, error) {
	var raw json.RawMessage
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func repairJSON(input string) string {
	out := escapeControlChars(input)
	out = missingCommaBeforeKeyRegex.ReplaceAllString(out, `$1, $2`)
	out = missingCommaAfterValueRegex.ReplaceAllString(out, `$1, $2`)
	out = missingCommaAfterBraceRegex.ReplaceAllString(out, `$1, $2`)
	out = trailingCommaRegex.ReplaceAllString(out, `$1`)
	out = singleQuoteKeyRegex.ReplaceAllString(out, `$1"$2"$3`)
	return closeTruncated(out)
}

// escapeControlChars escapes raw control characters inside JSON strings.
func escapeControlChars(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	inString, escaped := false, false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString && c < 0x20:
			switch c {
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				fmt.Fprintf(&b, `\u%04x`, c)
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closeTruncated balances an unterminated string and open brackets.
func closeTruncated(input string) string {
	quotes, escaped := 0, false
	for _, c := range input {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			quotes++
		}
	}
	if quotes%2 != 0 {
		input += `"`
	}
	for i := strings.Count(input, "[") - strings.Count(input, "]"); i > 0; i-- {
		input += "]"
	}
	for i := strings.Count(input, "{") - strings.Count(input, "}"); i > 0; i-- {
		input += "}"
	}
	return input
}

func stripFences(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
