// Package sanitize cleans model output into tag text the music service accepts.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/makeasinger/songprompt/internal/vocab"
)

var (
	fenceRe       = regexp.MustCompile("```[A-Za-z0-9_-]*")
	syntaxStrip   = strings.NewReplacer("{", "", "}", "", `"`, "", `\`, "")
	emphasisRe    = regexp.MustCompile(`\*+|_{2,}`)
	emptyTagRe    = regexp.MustCompile(`\[[ \t]*\][ \t]*`)
	tagRe         = regexp.MustCompile(`\[[^\[\]\n]+\]`)
	trailingWSRe  = regexp.MustCompile(`(?m)[ \t]+$`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe  = regexp.MustCompile(`[ \t]{2,}`)
	leadingWSRe   = regexp.MustCompile(`(?m)^[ \t]+`)
	bulletRe      = regexp.MustCompile(`(?m)^[ \t]*[-•][ \t]+`)
	preambleRe    = regexp.MustCompile(`(?im)^[ \t]*(?:here(?:'s|’s| is| are)\b[^\n:]*\b(?:prompt|lyrics|style|tags|song)\b[^\n:]*|based on\b[^\n:]*\bresearch\b[^\n:]*):[ \t]*`)
	energyClashRe = regexp.MustCompile(`(?i)\b(?:high[ \t]*energy|energetic|upbeat)\b[^\n]*?\b(?:chill|relaxed|ambient)\b|\b(?:chill|relaxed|ambient)\b[^\n]*?\b(?:high[ \t]*energy|energetic|upbeat)\b`)
)

// Normalize strips markup and chatter from generated text and canonicalises its
// bracket tags. Applying it twice gives the same result as applying it once.
//
// The energy-clash rule is a heuristic: any "high energy" word and any "chill"
// word on the same line are replaced, with everything between them, by
// "Medium Energy". It can swallow unrelated text sitting between the two words.
func Normalize(text string) string {
	if text == "" {
		return text
	}

	text = fenceRe.ReplaceAllString(text, "")
	text = syntaxStrip.Replace(text)
	text = emphasisRe.ReplaceAllString(text, "")
	text = stripEmptyTags(text)
	text = stripPreambles(text)
	text = energyClashRe.ReplaceAllString(text, "Medium Energy")
	text = canonicalizeTags(text)
	text = collapseDuplicateTags(text)
	text = strings.ReplaceAll(text, "][", "] [")
	text = trailingWSRe.ReplaceAllString(text, "")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// StripDirecting removes bracketed vocal, delivery and effect tags, leaving
// structure tags and free-form labels in place.
func StripDirecting(text string) string {
	text = tagRe.ReplaceAllStringFunc(text, func(tag string) string {
		if vocab.IsDirecting(tag[1 : len(tag)-1]) {
			return ""
		}
		return tag
	})
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = leadingWSRe.ReplaceAllString(text, "")
	return text
}

// stripEmptyTags removes empty brackets, including ones left empty by
// removing an inner pair.
func stripEmptyTags(text string) string {
	for {
		next := emptyTagRe.ReplaceAllString(text, "")
		if next == text {
			return text
		}
		text = next
	}
}

// stripPreambles removes assistant lead-ins and bullet markers at line starts.
// Removing one can expose another, so it runs until nothing changes.
func stripPreambles(text string) string {
	for i := 0; i < 8; i++ {
		next := preambleRe.ReplaceAllString(text, "")
		next = bulletRe.ReplaceAllString(next, "")
		if next == text {
			break
		}
		text = next
	}
	return text
}

func canonicalizeTags(text string) string {
	return tagRe.ReplaceAllStringFunc(text, func(tag string) string {
		if canonical, ok := vocab.Canonical(tag[1 : len(tag)-1]); ok {
			return "[" + canonical + "]"
		}
		return tag
	})
}

// collapseDuplicateTags keeps the first of a run of identical tags separated
// only by whitespace.
func collapseDuplicateTags(text string) string {
	locs := tagRe.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	copied := 0
	prevTag := ""
	prevEnd := 0
	for _, loc := range locs {
		tag := text[loc[0]:loc[1]]
		if tag == prevTag && strings.TrimSpace(text[prevEnd:loc[0]]) == "" {
			b.WriteString(text[copied:prevEnd])
			copied = loc[1]
			prevEnd = loc[1]
			continue
		}
		prevTag = tag
		prevEnd = loc[1]
	}
	b.WriteString(text[copied:])
	return b.String()
}
