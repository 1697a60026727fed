package service

import (
	"fmt"
	"strings"

	"github.com/makeasinger/songprompt/internal/model"
	"github.com/makeasinger/songprompt/internal/vocab"
)

const expertSystem = `You are an expert prompt engineer for an AI music generation service.
Rules:
- Tags go in square brackets, e.g. [Chorus]. Tags are always written in English, lyrics in the requested language.
- Never combine opposing energy descriptors such as high energy and chill.
- Most important descriptors come first; the music service weights early tags more heavily.
- Titles are catchy, genre-appropriate, at most 5 words, in Title Case.`

const styleResearchSystem = expertSystem + `
- When asked for a style prompt, answer with ONLY comma-separated descriptive tags. No prose, no sentences, no hashtags, no periods, no artist names.`

// buildStylePrompt asks for research-derived style tags for an artist-like input.
func buildStylePrompt(req *model.GenerationRequest, researchText string) string {
	return fmt.Sprintf(`Create a style prompt for "%s".
This is an ARTIST or SONG reference. Use the research below to describe its PRODUCTION STYLE:
genre, era, instrumentation, vocal processing, mixing techniques and mood.

RESEARCH:
%s

Return ONLY comma-separated tags, at most %d characters. Do not mention the artist by name.`,
		req.GenreOrArtist, researchText, researchStyleCap)
}

// lyricsSystem returns the system instruction for the lyrics call. The two
// branches differ in which tags the model is allowed to emit.
func lyricsSystem(directing bool) string {
	if directing {
		return expertSystem + fmt.Sprintf(`
- PRO VOCAL DIRECTING is ON. Before EVERY structural section write a tag triplet on its own line:
  [Vocal Type] [Delivery] [Effect], then the section tag, e.g.
  [Female Vocal] [Breathy] [Reverb]
  [Verse 1]
- Vocal types: %s.
- Deliveries: %s.
- Effects: %s.
- Use (parentheses) inside lines for performance directions, ad-libs and harmonies, e.g. (soft whisper: yeah).
- Follow the song arc: intimate verses, building pre-chorus, powerful chorus, a peak or contrasting bridge.`,
			strings.Join(vocab.VocalType, ", "),
			strings.Join(vocab.Delivery, ", "),
			strings.Join(vocab.Effects, ", "))
	}
	return expertSystem + fmt.Sprintf(`
- Use ONLY bare structural section tags: %s (numbered variants like [Verse 2] are fine).
- Do NOT write vocal type, delivery or effect tags.
- Do NOT write parenthetical annotations or performance directions.`,
		strings.Join(vocab.Structure, ", "))
}

// buildLyricsPrompt renders the user prompt for the lyrics call.
func buildLyricsPrompt(req *model.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write song lyrics in %s.\n", req.Language)
	fmt.Fprintf(&b, "GENRE / ARTIST: %s\n", req.GenreOrArtist)
	fmt.Fprintf(&b, "TOPIC: %s\n", req.Topic)
	fmt.Fprintf(&b, "VOCAL TYPE: %s\n", req.VocalType.Label())
	fmt.Fprintf(&b, "DURATION: %s\n", req.Duration)
	if req.HasBPM() {
		fmt.Fprintf(&b, "BPM: %s\n", req.BPM)
	}
	fmt.Fprintf(&b, "LENGTH: roughly %s words, sized for the duration.\n", wordBand(req.Duration))
	if req.VocalDirecting {
		b.WriteString("Add the vocal directing tag triplet before every section and parenthetical directions within lines.\n")
	} else {
		b.WriteString("Use structure tags only. No vocal, delivery or effect tags and no parentheses.\n")
	}
	fmt.Fprintf(&b, "Start the lyrics with [Style: %s, %s] on the first line.\n", req.VocalType.Label(), req.GenreOrArtist)
	b.WriteString(`Return JSON with exactly two fields: "title" and "lyrics".`)
	return b.String()
}

// wordBand scales the 120-250 word target by the requested duration.
func wordBand(duration string) string {
	secs, ok := parseDuration(duration)
	switch {
	case !ok:
		return "120-250"
	case secs <= 120:
		return "120-160"
	case secs <= 210:
		return "160-220"
	default:
		return "200-250"
	}
}

// parseDuration reads "m:ss", optionally followed by a unit suffix like "min".
func parseDuration(s string) (int, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimRight(s, "minsecutes ")
	var m, sec int
	if n, err := fmt.Sscanf(s, "%d:%d", &m, &sec); err == nil && n == 2 {
		return m*60 + sec, true
	}
	if n, err := fmt.Sscanf(s, "%d", &m); err == nil && n == 1 {
		return m * 60, true
	}
	return 0, false
}
