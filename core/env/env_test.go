package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreVariables(t *testing.T) {
	s := NewStore()

	_, ok := s.Lookup("FOO")
	assert.False(t, ok)
	assert.Equal(t, "", s.Get("FOO"))

	s.Set("FOO", "bar")
	assert.Equal(t, "bar", s.Get("FOO"))

	// Overwrite, never partial.
	s.Set("FOO", "baz")
	assert.Equal(t, "baz", s.Get("FOO"))

	s.Unset("FOO")
	_, ok = s.Lookup("FOO")
	assert.False(t, ok)
}

func TestNewStoreFromEnviron(t *testing.T) {
	s := NewStoreFromEnviron([]string{"A=1", "B=x=y", "EMPTY="})

	assert.Equal(t, "1", s.Get("A"))
	assert.Equal(t, "x=y", s.Get("B"))

	v, ok := s.Lookup("EMPTY")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestEnviron(t *testing.T) {
	s := NewStore()
	s.Set("B", "2")
	s.Set("A", "1")

	assert.Equal(t, []string{"A=1", "B=2"}, s.Environ())
}

func TestPathEntries(t *testing.T) {
	s := NewStore()
	s.Set(VarPath, "/usr/local/bin:/usr/bin::/bin")

	assert.Equal(t, []string{"/usr/local/bin", "/usr/bin", "/bin"}, s.PathEntries())
}

func TestAliases(t *testing.T) {
	s := NewStore()

	_, ok := s.Alias("ll")
	assert.False(t, ok)

	s.SetAlias("ll", "ls -la")
	s.SetAlias("gs", "git status")

	v, ok := s.Alias("ll")
	assert.True(t, ok)
	assert.Equal(t, "ls -la", v)

	assert.Equal(t, []string{"gs", "ll"}, s.AliasNames())

	aliases := s.Aliases()
	aliases["ll"] = "mutated"
	v, _ = s.Alias("ll")
	assert.Equal(t, "ls -la", v, "Aliases must return a copy")

	s.Unalias("ll")
	_, ok = s.Alias("ll")
	assert.False(t, ok)
}
