package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreName(t *testing.T) {
	tests := []struct {
		seed string
		want string
	}{
		{"shoes", "shoes.db"},
		{"running shoes", "running_shoes.db"},
		{"  a/b:c*d?  ", "abcd.db"},
		{`what "is" <this>|`, "what_is_this.db"},
		{"купить обувь", "купить_обувь.db"},
	}

	for _, tc := range tests {
		got, err := StoreName(tc.seed)
		require.NoError(t, err, tc.seed)
		assert.Equal(t, tc.want, got, "store name for %q", tc.seed)
	}
}

func TestStoreName_Deterministic(t *testing.T) {
	a, err := StoreName("red running shoes")
	require.NoError(t, err)
	b, err := StoreName("red running shoes")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStoreName_TruncatesRunes(t *testing.T) {
	got, err := StoreName(strings.Repeat("ж", 80))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ж", 50)+".db", got)
}

func TestStoreName_RejectsEmpty(t *testing.T) {
	for _, seed := range []string{"", "   ", `\/:*?"<>|`} {
		_, err := StoreName(seed)
		assert.ErrorIs(t, err, ErrInvalidSeed, "seed %q", seed)
	}
}

func TestNormalizePhrase(t *testing.T) {
	assert.Equal(t, "running shoes", NormalizePhrase("  running \t shoes\n"))
	assert.Equal(t, "", NormalizePhrase("   "))
}
