package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/makeasinger/songprompt/internal/model"
)

func TestTemplateStyle(t *testing.T) {
	assert.True(t, strings.HasPrefix(templateStyle("Dark Synthwave"), "synthwave,"))
	assert.True(t, strings.HasPrefix(templateStyle("k-pop"), "k-pop,"))
	assert.True(t, strings.HasPrefix(templateStyle("trap"), "trap,"))
	assert.Equal(t, templateStyle("jazz"), templateStyle("JAZZ"))

	generic := templateStyle("sea shanty")
	assert.True(t, strings.HasPrefix(generic, "sea shanty,"))

	for _, tpl := range styleTemplates {
		assert.LessOrEqual(t, utf8.RuneCountInString(tpl.style), templateStyleCap, tpl.keyword)
	}
	assert.LessOrEqual(t, utf8.RuneCountInString(templateStyle(strings.Repeat("very long genre ", 10))), templateStyleCap)
}

func TestCapStyle(t *testing.T) {
	assert.Equal(t, "a, b", capStyle("a, b", 10))
	assert.Equal(t, "alpha, beta", capStyle("alpha, beta, gamma", 14))
	assert.Equal(t, "abcde", capStyle("abcdefgh", 5))
}

func TestFlattenStyle(t *testing.T) {
	assert.Equal(t, "dark pop, synths, falsetto", flattenStyle("dark pop,\nsynths.\n, falsetto."))
}

func TestWordBand(t *testing.T) {
	assert.Equal(t, "120-160", wordBand("2:00min"))
	assert.Equal(t, "160-220", wordBand("3:00min"))
	assert.Equal(t, "200-250", wordBand("4 minutes"))
	assert.Equal(t, "120-250", wordBand("long"))
}

func TestBuildLyricsPrompt(t *testing.T) {
	req := &model.GenerationRequest{
		GenreOrArtist: "synthwave", Topic: "night drive", Language: "Spanish",
		VocalType: model.VocalDuet, BPM: "120", Duration: "3:00min",
	}
	p := buildLyricsPrompt(req)

	assert.Contains(t, p, "Write song lyrics in Spanish.")
	assert.Contains(t, p, "TOPIC: night drive")
	assert.Contains(t, p, "BPM: 120")
	assert.Contains(t, p, "[Style: Duet, synthwave]")
	assert.Contains(t, p, "Use structure tags only.")

	req.BPM = model.BPMAuto
	req.VocalDirecting = true
	p = buildLyricsPrompt(req)
	assert.NotContains(t, p, "BPM:")
	assert.Contains(t, p, "vocal directing tag triplet")
}
