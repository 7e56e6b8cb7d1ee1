package upload

import (
	"strings"
	"testing"

	"github.com/go-marketplace-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey_Deterministic(t *testing.T) {
	k1, err := StorageKey("42", "logo.png")
	require.NoError(t, err)
	k2, err := StorageKey("42", "logo.png")
	require.NoError(t, err)

	assert.Equal(t, "42/42_logo.png", k1)
	assert.Equal(t, k1, k2)
}

func TestStorageKey_Rejects(t *testing.T) {
	cases := []struct{ owner, file string }{
		{"", "a.png"},
		{"42", ""},
		{"42", "   "},
		{"42", "../etc/passwd"},
		{"42", "a/b.png"},
		{"42", `a\b.png`},
		{"../41", "a.png"},
		{"4/2", "a.png"},
		{"42", "a\x00.png"},
		{"42", "a\n.png"},
		{".", "a.png"},
	}
	for _, c := range cases {
		_, err := StorageKey(c.owner, c.file)
		assert.ErrorIs(t, err, domain.ErrBadRequest, "owner=%q file=%q", c.owner, c.file)
	}
}

func TestStorageKey_AllowsDotsInName(t *testing.T) {
	k, err := StorageKey("42", "archive.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "42/42_archive.tar.gz", k)
}

func TestOwnerPrefix(t *testing.T) {
	p, err := OwnerPrefix("42")
	require.NoError(t, err)
	assert.Equal(t, "42/", p)

	// "4" must not match keys of owner "42".
	p, err = OwnerPrefix("4")
	require.NoError(t, err)
	k, err := StorageKey("42", "a.png")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(k, p))
}
