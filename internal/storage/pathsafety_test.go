package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Project", "My_Project"},
		{"../../etc/passwd", "etcpasswd"},
		{"a//b", "ab"},
		{"__weird__", "weird"},
		{"a___b", "a_b"},
		{".hidden.", "hidden"},
	}
	for _, c := range cases {
		got, err := SanitizeToken("field", c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestSanitizeTokenRejectsEmptyResult(t *testing.T) {
	for _, in := range []string{"", "..", "...", "___"} {
		_, err := SanitizeToken("field", in)
		assert.Error(t, err, in)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestResolveUnderRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := resolveUnder(root, "..", "..", "etc")
	assert.Error(t, err)
}

func TestResolveUnderAllowsNested(t *testing.T) {
	root := t.TempDir()
	got, err := resolveUnder(root, "cards", "characters", "alice.yaml")
	require.NoError(t, err)
	assert.Contains(t, got, root)
}
