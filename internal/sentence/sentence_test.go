package sentence

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Ana are mere.", true},
		{"Ce faci?", true},
		{"Stop!", true},
		{"Are 3 mere, 2 pere.", true},
		{"ana are mere.", false},
		{"Ana are mere", false},
		{"Ana are mere, si pere.", false},
		{"Ana are mere,si pere.", false},
		{"Ana are mere si pere.", true},
		{"Ana; are mere.", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorrect(tt.line))
		})
	}
}

func TestCount(t *testing.T) {
	input := strings.Join([]string{
		"Ana are mere.",
		"Bob is here.",
		"Mama vine.",
	}, "\n") + "\n"

	n, err := Count(strings.NewReader(input), 'a')
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCount_IgnoresIncorrectSentencesContainingCharacter(t *testing.T) {
	input := "ana are mere.\nAna are mere, si pere.\nAna are pere.\r\n"

	n, err := Count(strings.NewReader(input), 'a')
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCount_BinaryInput(t *testing.T) {
	n, err := Count(bytes.NewReader([]byte{0, 1, 2, 0xff, '\n', 'X', '.'}), 'a')
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run("a", strings.NewReader("Ana are mere.\n"), &out))
	assert.Equal(t, "1\n", out.String())
}

func TestRun_RejectsMultiCharacterPattern(t *testing.T) {
	var out bytes.Buffer
	err := Run("ab", strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Empty(t, out.String())
}
