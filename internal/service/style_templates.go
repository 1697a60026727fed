package service

import (
	"strings"
	"unicode/utf8"
)

const (
	templateStyleCap = 100
	researchStyleCap = 250
)

type styleTemplate struct {
	keyword string
	style   string
}

// styleTemplates is matched in order by substring, so more specific keywords
// come before the generic ones they contain ("k-pop" before "pop",
// "trap" before "rap").
var styleTemplates = []styleTemplate{
	{"synthwave", "synthwave, retro 80s, analog synths, driving arpeggios, gated drums, neon nostalgia"},
	{"lofi", "lo-fi hip hop, dusty drums, jazzy piano chords, vinyl crackle, mellow, warm bass"},
	{"lo-fi", "lo-fi hip hop, dusty drums, jazzy piano chords, vinyl crackle, mellow, warm bass"},
	{"drum and bass", "drum and bass, fast breakbeats, rolling sub bass, atmospheric pads, 174 BPM energy"},
	{"hip hop", "hip hop, boom bap drums, deep 808 bass, sampled loops, confident flow, crisp mix"},
	{"hip-hop", "hip hop, boom bap drums, deep 808 bass, sampled loops, confident flow, crisp mix"},
	{"trap", "trap, rolling hi-hats, booming 808s, dark synth melody, aggressive, modern mix"},
	{"rap", "rap, hard-hitting 808s, trap hi-hats, dark melodic loop, punchy vocals, modern mix"},
	{"r&b", "contemporary R&B, smooth groove, lush keys, sub bass, silky vocals, late night mood"},
	{"rnb", "contemporary R&B, smooth groove, lush keys, sub bass, silky vocals, late night mood"},
	{"k-pop", "k-pop, polished electro-pop, punchy drums, bright synths, catchy hooks, dynamic drops"},
	{"indie", "indie rock, jangly guitars, driving rhythm section, bright reverb, wistful, raw"},
	{"metal", "heavy metal, distorted guitars, double kick drums, aggressive riffs, powerful vocals"},
	{"punk", "punk rock, fast power chords, raw drums, shouted vocals, rebellious, lo-fi grit"},
	{"rock", "rock, electric guitar riffs, solid drum groove, driving bass, anthemic, live feel"},
	{"house", "house, four on the floor, warm bassline, piano stabs, uplifting, club mix"},
	{"techno", "techno, hypnotic kick, rolling bass, industrial textures, dark warehouse, minimal"},
	{"edm", "EDM, big room synths, build-ups and drops, punchy kick, festival anthem, wide stereo"},
	{"electronic", "electronic, crisp synthesizers, layered pads, four on the floor, progressive build"},
	{"ambient", "ambient, ethereal pads, slow evolving textures, soft reverb, meditative, spacious"},
	{"jazz", "jazz, upright bass, brushed drums, warm piano, smoky late night club, swing"},
	{"blues", "blues, gritty electric guitar, shuffle rhythm, harmonica, soulful, raw emotion"},
	{"soul", "soul, warm organ, tight horns, groovy bass, heartfelt vocals, vintage analog"},
	{"funk", "funk, slap bass, rhythm guitar scratching, tight horns, groovy, dancefloor"},
	{"disco", "disco, four on the floor, string stabs, funky bass, glittering, dancefloor"},
	{"country", "country, acoustic guitar, pedal steel, fiddle, heartfelt storytelling, warm"},
	{"folk", "folk, fingerpicked acoustic guitar, soft harmonica, intimate, organic, warm"},
	{"reggaeton", "reggaeton, dembow rhythm, latin percussion, deep bass, sensual, modern urban"},
	{"reggae", "reggae, offbeat guitar skank, deep bass, one drop drums, laid-back, sunny"},
	{"latin", "latin pop, congas and bongos, nylon guitar, syncopated rhythm, warm, festive"},
	{"bossa", "bossa nova, nylon guitar, soft brushed percussion, warm upright bass, breezy"},
	{"classical", "classical, string quartet, flowing melodies, delicate piano, refined, contemplative"},
	{"orchestral", "cinematic orchestral, sweeping strings, powerful brass, timpani, epic build"},
	{"cinematic", "cinematic orchestral, sweeping strings, powerful brass, timpani, epic build"},
	{"gospel", "gospel, choir harmonies, hammond organ, handclaps, uplifting, soulful"},
	{"ballad", "ballad, piano-led, soft strings, emotional, slow tempo, intimate vocal"},
	{"pop", "pop, catchy hooks, polished production, punchy drums, bright synths, radio-ready"},
}

// templateStyle maps a genre onto a fixed style string. It never calls a
// backend, so the no-research path stays deterministic.
func templateStyle(genre string) string {
	g := strings.ToLower(genre)
	for _, t := range styleTemplates {
		if strings.Contains(g, t.keyword) {
			return t.style
		}
	}
	return capStyle(strings.TrimSpace(genre)+", modern production, polished mix, memorable melody, studio quality", templateStyleCap)
}

// capStyle shortens s to at most max runes, cutting at the last comma that
// fits so no tag is left half-written.
func capStyle(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := string([]rune(s)[:max])
	if i := strings.LastIndex(cut, ","); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(strings.TrimSpace(cut), ",")
}

// flattenStyle joins a multi-line style reply into a single comma list.
func flattenStyle(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		for _, p := range strings.Split(line, ",") {
			p = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(p), "."))
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.Join(parts, ", ")
}
