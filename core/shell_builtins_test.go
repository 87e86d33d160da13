package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mar.sh/marsh/core/complete"
	"mar.sh/marsh/core/env"
	"mar.sh/marsh/core/history"
	"mar.sh/marsh/core/job"
)

// newTestShell builds a Shell without a line editor, with stdio captured
// in a temp file.
func newTestShell(t *testing.T) (*Shell, func() string) {
	t.Helper()

	out, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })

	stdio := job.IO{In: os.Stdin, Out: out, Err: out}
	store := env.NewStoreFromEnviron(os.Environ())

	s := &Shell{Env: store, stdio: stdio}
	s.Exec = job.New(store, stdio)
	s.Exec.Builtins = dispatcher{s}
	s.History, _ = history.New(100, nil)

	read := func() string {
		data, err := os.ReadFile(out.Name())
		require.NoError(t, err)
		return string(data)
	}
	return s, read
}

func runBuiltin(s *Shell, argv ...string) int {
	return dispatcher{s}.Run(argv, s.stdio)
}

func TestDispatcherKnowsBuiltins(t *testing.T) {
	d := dispatcher{}
	for _, name := range []string{"cd", "pwd", "exit", "source", ".", "alias",
		"unalias", "export", "unset", "history", "jobs", "fg", "bg", "complete"} {
		assert.True(t, d.IsBuiltin(name), name)
	}
	assert.False(t, d.IsBuiltin("ls"))
}

func TestBuiltinCd(t *testing.T) {
	s, read := newTestShell(t)

	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(orig) })

	dir := t.TempDir()
	s.Env.Set(env.VarPWD, orig)

	require.Equal(t, 0, runBuiltin(s, "cd", dir))
	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, s.Env.Get(env.VarPWD))
	assert.Equal(t, orig, s.Env.Get(env.VarOldPWD))

	// `cd -` returns to the previous directory and echoes it.
	require.Equal(t, 0, runBuiltin(s, "cd", "-"))
	assert.Equal(t, orig, s.Env.Get(env.VarPWD))
	assert.Contains(t, read(), orig)
}

func TestBuiltinCdMissingDirLeavesStateAlone(t *testing.T) {
	s, read := newTestShell(t)

	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(orig) })
	s.Env.Set(env.VarPWD, orig)

	assert.Equal(t, job.ExitFailure, runBuiltin(s, "cd", "/definitely/not/here"))
	assert.Equal(t, orig, s.Env.Get(env.VarPWD))
	assert.Contains(t, read(), "cd: ")

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, orig, wd)
}

func TestBuiltinCdHome(t *testing.T) {
	s, _ := newTestShell(t)

	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(orig) })

	home := t.TempDir()
	s.Env.Set(env.VarHome, home)

	require.Equal(t, 0, runBuiltin(s, "cd"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	// TempDir may be behind a symlink; compare resolved paths.
	wantWd, err := filepath.EvalSymlinks(home)
	require.NoError(t, err)
	gotWd, err := filepath.EvalSymlinks(wd)
	require.NoError(t, err)
	assert.Equal(t, wantWd, gotWd)
}

func TestBuiltinPwd(t *testing.T) {
	s, read := newTestShell(t)
	s.Env.Set(env.VarPWD, "/somewhere/nice")

	assert.Equal(t, 0, runBuiltin(s, "pwd"))
	assert.Equal(t, "/somewhere/nice\n", read())
}

func TestBuiltinExit(t *testing.T) {
	s, _ := newTestShell(t)
	s.lastStatus = 3

	assert.Equal(t, 3, runBuiltin(s, "exit"))
	assert.True(t, s.quit)
	assert.Equal(t, 3, s.quitStatus)

	s.quit = false
	assert.Equal(t, 42, runBuiltin(s, "exit", "42"))
	assert.True(t, s.quit)
	assert.Equal(t, 42, s.quitStatus)
}

func TestBuiltinExitRejectsBadCode(t *testing.T) {
	s, read := newTestShell(t)

	for _, arg := range []string{"abc", "-1", "256"} {
		s.quit = false
		assert.Equal(t, job.ExitFailure, runBuiltin(s, "exit", arg), arg)
		assert.False(t, s.quit, arg)
	}
	assert.Contains(t, read(), "numeric argument")
}

func TestBuiltinAliasRoundTrip(t *testing.T) {
	s, read := newTestShell(t)

	require.Equal(t, 0, runBuiltin(s, "alias", "ll=ls -la", "gs=git status"))
	v, ok := s.Env.Alias("ll")
	require.True(t, ok)
	assert.Equal(t, "ls -la", v)

	require.Equal(t, 0, runBuiltin(s, "alias"))
	got := read()
	assert.Contains(t, got, "alias gs='git status'")
	assert.Contains(t, got, "alias ll='ls -la'")
	assert.Less(t, strings.Index(got, "gs="), strings.Index(got, "ll="),
		"listing is sorted by name")

	require.Equal(t, 0, runBuiltin(s, "unalias", "ll"))
	_, ok = s.Env.Alias("ll")
	assert.False(t, ok)

	assert.Equal(t, job.ExitFailure, runBuiltin(s, "unalias", "ll"))
	assert.Equal(t, job.ExitFailure, runBuiltin(s, "alias", "nope"))
}

func TestBuiltinExportAndUnset(t *testing.T) {
	s, read := newTestShell(t)

	require.Equal(t, 0, runBuiltin(s, "export", "GREETING=hello world"))
	assert.Equal(t, "hello world", s.Env.Get("GREETING"))

	require.Equal(t, 0, runBuiltin(s, "export"))
	assert.Contains(t, read(), "export GREETING=hello world")

	require.Equal(t, 0, runBuiltin(s, "unset", "GREETING"))
	_, ok := s.Env.Lookup("GREETING")
	assert.False(t, ok)

	assert.Equal(t, job.ExitFailure, runBuiltin(s, "unset"))
}

func TestBuiltinHistory(t *testing.T) {
	s, read := newTestShell(t)
	for _, line := range []string{"ls", "git status", "git log", "make"} {
		require.NoError(t, s.History.Record(line))
	}

	require.Equal(t, 0, runBuiltin(s, "history", "-n", "2"))
	got := read()
	assert.NotContains(t, got, "ls")
	assert.Contains(t, got, "git log")
	assert.Contains(t, got, "make")
}

func TestBuiltinHistorySearch(t *testing.T) {
	s, read := newTestShell(t)
	for _, line := range []string{"git status", "make", "git log"} {
		require.NoError(t, s.History.Record(line))
	}

	require.Equal(t, 0, runBuiltin(s, "history", "-p", "git"))
	got := read()
	assert.Contains(t, got, "git status")
	assert.Contains(t, got, "git log")
	assert.NotContains(t, got, "make")
	assert.Less(t, strings.Index(got, "git log"), strings.Index(got, "git status"),
		"most recent match first")
}

func TestBuiltinHistoryClear(t *testing.T) {
	s, _ := newTestShell(t)
	require.NoError(t, s.History.Record("ls"))

	require.Equal(t, 0, runBuiltin(s, "history", "-c"))
	assert.Zero(t, s.History.Len())
}

func TestBuiltinJobsEmpty(t *testing.T) {
	s, read := newTestShell(t)
	assert.Equal(t, 0, runBuiltin(s, "jobs"))
	assert.Empty(t, read())
}

func TestBuiltinFgNoJobs(t *testing.T) {
	s, read := newTestShell(t)
	assert.Equal(t, job.ExitFailure, runBuiltin(s, "fg"))
	assert.Contains(t, read(), "fg: ")

	assert.Equal(t, job.ExitFailure, runBuiltin(s, "bg", "%7"))
	assert.Equal(t, job.ExitFailure, runBuiltin(s, "fg", "nonsense"))
}

func TestBuiltinComplete(t *testing.T) {
	s, read := newTestShell(t)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/bin", 0755))
	require.NoError(t, afero.WriteFile(fs, "/bin/git", nil, 0755))

	s.Env.Set(env.VarPath, "/bin")
	s.Env.SetAlias("gs", "git status")

	s.Completion = complete.NewEngine(s.Env)
	s.Completion.Fs = fs
	s.Completion.Builtins = builtinNames()
	s.Completion.BuiltinFlags = builtinFlags

	require.Equal(t, 0, runBuiltin(s, "complete", "g"))
	got := read()
	assert.Contains(t, got, "gs")
	assert.Contains(t, got, "git status")
	assert.Contains(t, got, "git")
}

func TestRunLine(t *testing.T) {
	s, read := newTestShell(t)

	assert.Equal(t, 0, s.RunLine("export COLOR=teal"))
	assert.Equal(t, "teal", s.Env.Get("COLOR"))

	// Expansion happens before execution.
	assert.Equal(t, 0, s.RunLine("echo $COLOR"))
	assert.Contains(t, read(), "teal\n")

	assert.NotZero(t, s.RunLine("false"))
	assert.Equal(t, 0, s.RunLine("false || true"))
}

func TestRunLineSyntaxError(t *testing.T) {
	s, read := newTestShell(t)

	assert.Equal(t, exitSyntax, s.RunLine("echo 'unterminated"))
	assert.Contains(t, read(), "marsh: ")
	assert.Equal(t, exitSyntax, s.lastStatus)

	assert.Equal(t, exitSyntax, s.RunLine("| cat"))
}

func TestRunLineEmptyKeepsStatus(t *testing.T) {
	s, _ := newTestShell(t)

	s.RunLine("false")
	want := s.lastStatus
	assert.Equal(t, want, s.RunLine("   "))
	assert.Equal(t, want, s.lastStatus)
}

func TestRunLineAliasExpansion(t *testing.T) {
	s, read := newTestShell(t)
	s.Env.SetAlias("greet", "echo hello from")

	assert.Equal(t, 0, s.RunLine("greet marsh"))
	assert.Equal(t, "hello from marsh\n", read())
}
