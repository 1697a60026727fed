package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"female vocal", "Female Vocal", true},
		{"BREATHY", "Breathy", true},
		{"  pre-chorus ", "Pre-Chorus", true},
		{"wide   stereo", "Wide Stereo", true},
		{"verse 1", "", false},
		{"Style", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Canonical(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVocabulariesAreDisjoint(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range All() {
		k := key(name)
		require.False(t, seen[k], "duplicate tag %q", name)
		seen[k] = true
	}
}

func TestIsDirecting(t *testing.T) {
	assert.True(t, IsDirecting("female vocal"))
	assert.True(t, IsDirecting("Breathy"))
	assert.True(t, IsDirecting("reverb"))
	assert.False(t, IsDirecting("Chorus"))
	assert.False(t, IsDirecting("Verse 2"))
}
