package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T) Moderator {
	t.Helper()
	m, err := NewModerator([]string{"moron", "scumbag"}, '*')
	require.NoError(t, err)
	return m
}

func Test_Censor_Masks_Word_Preserving_Length(t *testing.T) {
	req := require.New(t)
	moderator := newTestModerator(t)

	masked, found := moderator.Censor("you moron !")

	req.Equal("you ***** !", masked)
	req.Equal([]string{"moron"}, found)
}

func Test_Censor_Catches_Leet_Speak(t *testing.T) {
	req := require.New(t)
	moderator := newTestModerator(t)

	masked, found := moderator.Censor("m0r0n")

	req.Equal("*****", masked)
	req.Len(found, 1)
}

func Test_Censor_Clean_Text_Untouched(t *testing.T) {
	req := require.New(t)
	moderator := newTestModerator(t)

	masked, found := moderator.Censor("have a lovely day")

	req.Equal("have a lovely day", masked)
	req.Empty(found)
}

func Test_LoadEmbedded_Returns_Words_And_Languages(t *testing.T) {
	req := require.New(t)

	words, languages, err := LoadEmbedded()

	req.NoError(err)
	req.NotEmpty(words)
	req.Contains(languages, "en")
	req.Contains(languages, "fr")
}
