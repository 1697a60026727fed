// Package parser coerces raw model completions into a title and lyrics record.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxExcerpt bounds the raw text carried by a ParseError.
const MaxExcerpt = 200

// Lyrics is the structured record extracted from a completion.
type Lyrics struct {
	Title  string `json:"title"`
	Lyrics string `json:"lyrics"`
}

// ParseError is returned when none of the parse strategies produced a record.
type ParseError struct {
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse structured response: %q", e.Excerpt)
}

var (
	fenceRe       = regexp.MustCompile("```[A-Za-z0-9_-]*")
	titleFieldRe  = regexp.MustCompile(`(?is)["']?title["']?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	lyricsFieldRe = regexp.MustCompile(`(?is)["']?lyrics["']?\s*:\s*"((?:[^"\\]|\\.)*)(?:"|$)`)
)

// Parse tries, in order: the whole text as JSON once code fences are removed,
// the span between the first "{" and the last "}", and finally independent
// regex extraction of the title and lyrics fields.
func Parse(raw string) (*Lyrics, error) {
	stripped := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	if rec, ok := decodeObject(stripped); ok {
		return rec, nil
	}
	if span, ok := extractJSON(stripped); ok {
		if rec, ok := decodeObject(span); ok {
			return rec, nil
		}
	}
	if rec, ok := extractFields(stripped); ok {
		return rec, nil
	}

	return nil, &ParseError{Excerpt: excerpt(raw)}
}

// wireRecord accepts lyrics either as one string or as a list of lines.
type wireRecord struct {
	Title  string          `json:"title"`
	Lyrics json.RawMessage `json:"lyrics"`
}

func decodeObject(s string) (*Lyrics, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}

	var w wireRecord
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return nil, false
	}

	lyrics := decodeLyrics(w.Lyrics)
	if strings.TrimSpace(lyrics) == "" {
		return nil, false
	}

	return &Lyrics{Title: strings.TrimSpace(w.Title), Lyrics: lyrics}, true
}

func decodeLyrics(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "\n")
	}

	return ""
}

// extractJSON returns the text from the first { to the last }.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// extractFields pulls the two string fields out of JSON-ish text that failed
// to decode, e.g. with a trailing comma or a truncated closing brace.
func extractFields(s string) (*Lyrics, bool) {
	tm := titleFieldRe.FindStringSubmatch(s)
	lm := lyricsFieldRe.FindStringSubmatch(s)
	if tm == nil || lm == nil {
		return nil, false
	}

	title := strings.TrimSpace(unescape(tm[1]))
	lyrics := strings.TrimSpace(unescape(strings.TrimRight(lm[1], "}\n\t ")))
	if title == "" || lyrics == "" {
		return nil, false
	}

	return &Lyrics{Title: title, Lyrics: lyrics}, true
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "", `\"`, `"`, `\/`, "/", `\\`, `\`)

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return escapes.Replace(s)
}

func excerpt(raw string) string {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) <= MaxExcerpt {
		return raw
	}
	runes := []rune(raw)
	return string(runes[:MaxExcerpt])
}
