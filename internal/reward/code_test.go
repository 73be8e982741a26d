package reward

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode_Alphabet(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected symbol %q", c)
		}
	}
}

func TestGenerateCode_CoversAlphabet(t *testing.T) {
	seen := map[rune]bool{}
	for i := 0; i < 2000 && len(seen) < len(codeAlphabet); i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		for _, c := range code {
			seen[c] = true
		}
	}
	assert.Len(t, seen, len(codeAlphabet))
}

func TestMaxUnbiased(t *testing.T) {
	assert.Equal(t, 252, maxUnbiased)
	assert.Zero(t, maxUnbiased%len(codeAlphabet))
}
