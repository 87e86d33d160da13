package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mar.sh/marsh/core/env"
)

func testLoader(t *testing.T, files map[string]string) (*Loader, *env.Store) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}

	store := env.NewStore()
	store.Set(env.VarHome, "/home/alice")
	return &Loader{Fs: fs, Store: store}, store
}

func TestSourceExportsAndAliases(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/home/alice/.marshrc": `
# comment
export EDITOR=vim
export GREETING="hello world"
alias ll='ls -la'
alias gs='git status'
`,
	})

	require.NoError(t, l.Source("/home/alice/.marshrc"))

	assert.Equal(t, "vim", store.Get("EDITOR"))
	assert.Equal(t, "hello world", store.Get("GREETING"))

	v, ok := store.Alias("ll")
	require.True(t, ok)
	assert.Equal(t, "ls -la", v)
	assert.Equal(t, []string{"gs", "ll"}, store.AliasNames())
}

func TestSourcePathAssignment(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc": "PATH=/usr/local/bin:$PATH\n",
	})
	store.Set(env.VarPath, "/usr/bin:/bin")

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "/usr/local/bin:/usr/bin:/bin", store.Get(env.VarPath))
}

func TestSourceVariableExpansionInValues(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc": "export GOPATH=$HOME/go\nexport TILDE=~/bin\n",
	})

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "/home/alice/go", store.Get("GOPATH"))
	assert.Equal(t, "/home/alice/bin", store.Get("TILDE"))
}

func TestConditionalFileExists(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc": `
if [ -f /etc/profile ]; then
	export HAS_PROFILE=yes
fi
if [ -f /etc/missing ]; then
	export HAS_MISSING=yes
else
	export HAS_MISSING=no
fi
`,
		"/etc/profile": "x",
	})

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "yes", store.Get("HAS_PROFILE"))
	assert.Equal(t, "no", store.Get("HAS_MISSING"))
}

func TestConditionalTests(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc": `
export SET_VAR=value
if [ -n "$SET_VAR" ]
then
	export N_TEST=yes
fi
if [ -z "$UNSET_VAR" ]; then
	export Z_TEST=yes
fi
if [ "$SET_VAR" = "value" ]; then
	export EQ_TEST=yes
fi
if [ -d /some/dir ]; then
	export D_TEST=yes
fi
`,
	})
	require.NoError(t, l.Fs.MkdirAll("/some/dir", 0755))

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "yes", store.Get("N_TEST"))
	assert.Equal(t, "yes", store.Get("Z_TEST"))
	assert.Equal(t, "yes", store.Get("EQ_TEST"))
	assert.Equal(t, "yes", store.Get("D_TEST"))
}

func TestConditionalNesting(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc": `
export A=1
if [ -n "$A" ]; then
	if [ -z "$B" ]; then
		export NESTED=yes
	fi
else
	export NESTED=no
fi
`,
	})

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "yes", store.Get("NESTED"))
}

func TestInactiveBranchIsSkipped(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc": `
if [ -n "$NEVER_SET" ]; then
	export SKIPPED=yes
	alias bad='rm -rf /'
fi
export AFTER=yes
`,
	})

	require.NoError(t, l.Source("/rc"))
	_, ok := store.Lookup("SKIPPED")
	assert.False(t, ok)
	_, aliased := store.Alias("bad")
	assert.False(t, aliased)
	assert.Equal(t, "yes", store.Get("AFTER"))
}

func TestSourceInclusion(t *testing.T) {
	l, store := testLoader(t, map[string]string{
		"/rc":     "export FROM_RC=1\nsource /extra\n. /extra2\nsource /does/not/exist\n",
		"/extra":  "export FROM_EXTRA=1\n",
		"/extra2": "export FROM_EXTRA2=1\n",
	})

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "1", store.Get("FROM_RC"))
	assert.Equal(t, "1", store.Get("FROM_EXTRA"))
	assert.Equal(t, "1", store.Get("FROM_EXTRA2"))
}

func TestSourceSelfInclusionTerminates(t *testing.T) {
	l, _ := testLoader(t, map[string]string{
		"/rc": "source /rc\n",
	})

	assert.Error(t, l.Source("/rc"))
}

func TestStructuralErrors(t *testing.T) {
	cases := map[string]string{
		"missing fi": "if [ -n \"$A\" ]; then\nexport X=1\n",
		"stray fi":   "fi\n",
		"stray else": "else\n",
		"bad test":   "if [ -q /nope ]; then\nfi\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			l, _ := testLoader(t, map[string]string{"/rc": content})
			assert.Error(t, l.Source("/rc"))
		})
	}
}

func TestUnsupportedLineWarnsButContinues(t *testing.T) {
	var warnings []string
	l, store := testLoader(t, map[string]string{
		"/rc": "echo hello\nexport AFTER=1\n",
	})
	l.Warn = func(format string, args ...interface{}) {
		warnings = append(warnings, format)
	}

	require.NoError(t, l.Source("/rc"))
	assert.Equal(t, "1", store.Get("AFTER"))
	assert.Len(t, warnings, 1)
}

func TestSourceIfExistsMissingFile(t *testing.T) {
	l, _ := testLoader(t, nil)
	assert.NoError(t, l.SourceIfExists("/no/such/rc"))
}
