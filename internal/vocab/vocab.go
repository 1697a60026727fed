// Package vocab holds the closed tag vocabularies the music service recognises
// inside bracket tags, and the canonical spelling of each entry.
package vocab

import "strings"

// Category identifies which vocabulary a tag belongs to.
type Category string

const (
	CategoryStructure Category = "structure"
	CategoryVocal     Category = "vocal"
	CategoryDelivery  Category = "delivery"
	CategoryEffect    Category = "effect"
)

// Structure tags denote song sections.
var Structure = []string{
	"Intro", "Verse", "Pre-Chorus", "Chorus", "Post-Chorus", "Bridge", "Outro",
	"Hook", "Break", "Drop", "Buildup", "Fade Out", "Instrumental", "Solo",
}

// VocalType tags name the voice or singing technique.
var VocalType = []string{
	"Male Vocal", "Female Vocal", "Duet", "Choir", "Kids Vocal", "Whisper",
	"Spoken Word", "Rap", "Falsetto", "Belting", "Growl",
}

// Delivery tags describe how a line is performed.
var Delivery = []string{
	"Soft", "Powerful", "Breathy", "Clear", "Gritty", "Emotional", "Intimate",
	"Raspy", "Smooth", "Airy", "Building", "Restrained", "Playful",
}

// Effects tags describe vocal processing.
var Effects = []string{
	"Reverb", "Delay", "Wide Stereo", "Harmonies", "Echo", "Double Tracked",
	"Auto-Tune", "Vocoder", "Distortion", "Lo-Fi Filter", "Ad-Libs",
}

// MaxModeTags is prepended verbatim to the style prompt in MAX mode.
const MaxModeTags = `[Is_MAX_MODE: MAX]
[QUALITY: MASTERING_GRADE]
[REALISM: STUDIO_RECORDING]
[REAL_INSTRUMENTS: TRUE]
[AUDIO_SPEC: 24-bit_96kHz_WIDE_STEREO]
[PRODUCTION: PROFESSIONAL_MIX]`

type entry struct {
	canonical string
	category  Category
}

var index = buildIndex()

func buildIndex() map[string]entry {
	idx := make(map[string]entry)
	add := func(c Category, names []string) {
		for _, n := range names {
			idx[key(n)] = entry{canonical: n, category: c}
		}
	}
	add(CategoryStructure, Structure)
	add(CategoryVocal, VocalType)
	add(CategoryDelivery, Delivery)
	add(CategoryEffect, Effects)
	return idx
}

// key lowercases and collapses inner whitespace so "  female   VOCAL " matches "Female Vocal".
func key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Canonical returns the stored spelling of name when it is an exact
// (case-insensitive) vocabulary entry. Partial matches such as "Verse 1" are not members.
func Canonical(name string) (string, bool) {
	e, ok := index[key(name)]
	return e.canonical, ok
}

// Kind reports which vocabulary name belongs to.
func Kind(name string) (Category, bool) {
	e, ok := index[key(name)]
	return e.category, ok
}

// IsDirecting reports whether name is a vocal, delivery or effect tag.
func IsDirecting(name string) bool {
	c, ok := Kind(name)
	return ok && c != CategoryStructure
}

// All returns every canonical tag, structure first.
func All() []string {
	out := make([]string, 0, len(Structure)+len(VocalType)+len(Delivery)+len(Effects))
	out = append(out, Structure...)
	out = append(out, VocalType...)
	out = append(out, Delivery...)
	return append(out, Effects...)
}
