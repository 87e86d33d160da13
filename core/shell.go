// Package core drives the interactive session: the readline loop, prompt
// rendering and the built-in command set, wired over the environment
// store, parser, executor, history and completion packages.
package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abiosoft/readline"
	"github.com/mattn/go-isatty"

	"mar.sh/marsh/core/complete"
	"mar.sh/marsh/core/config"
	"mar.sh/marsh/core/env"
	"mar.sh/marsh/core/expand"
	"mar.sh/marsh/core/history"
	"mar.sh/marsh/core/job"
	"mar.sh/marsh/core/parse"
)

// Parse errors surface as status 2, distinct from command failures.
const exitSyntax = 2

// Shell is one interactive session. All mutation funnels through the
// single Run loop; nothing here is safe for concurrent use.
type Shell struct {
	Settings   *config.Settings
	Env        *env.Store
	Exec       *job.Executor
	History    *history.Manager
	Completion *complete.Engine
	Readline   *readline.Instance

	stdio      job.IO
	lastStatus int
	quit       bool
	quitStatus int
}

// Options adjust session construction, typically from CLI flags.
type Options struct {
	// Stdio defaults to the process stdio when In is nil.
	Stdio job.IO
	// RCFile overrides the settings' startup script path.
	RCFile string
	// NoRC skips startup script evaluation.
	NoRC bool
	// Quiet suppresses startup warnings.
	Quiet bool
}

// NewShell assembles a session: environment seeded from the process,
// startup script sourced, history loaded and the line editor initialized.
// Construction failures are fatal only for the line editor; everything
// else degrades with a warning.
func NewShell(settings *config.Settings, opts Options) (*Shell, error) {
	stdio := opts.Stdio
	if stdio.In == nil {
		stdio = job.StdIO()
	}
	interactive := isatty.IsTerminal(stdio.In.Fd())

	warn := func(format string, args ...interface{}) {
		if !opts.Quiet {
			fmt.Fprintf(stdio.Err, "marsh: "+format+"\n", args...)
		}
	}

	store := env.NewStoreFromEnviron(os.Environ())
	seedDefaults(store, settings, interactive)

	s := &Shell{
		Settings: settings,
		Env:      store,
		Exec:     job.New(store, stdio),
		stdio:    stdio,
	}
	s.Exec.Builtins = dispatcher{s}

	if !opts.NoRC {
		rc := settings.RCFile
		if opts.RCFile != "" {
			rc = opts.RCFile
		}
		loader := config.NewLoader(store)
		loader.Warn = warn
		if err := loader.SourceIfExists(rc); err != nil {
			warn("%s: %v", rc, err)
		}
	}

	var histStore history.Store
	if settings.History.File != "" {
		bs, err := history.OpenBolt(settings.History.File)
		if err != nil {
			warn("history: %v", err)
		} else {
			histStore = bs
		}
	}
	mgr, err := history.New(settings.History.MaxEntries, histStore)
	if err != nil {
		// Unreadable store: run with in-memory history for this session.
		warn("history: %v", err)
		mgr, _ = history.New(settings.History.MaxEntries, nil)
	}
	s.History = mgr

	s.Completion = complete.NewEngine(store)
	s.Completion.Builtins = builtinNames()
	s.Completion.BuiltinFlags = builtinFlags

	cfg := &readline.Config{
		Stdin:                  stdio.In,
		Stdout:                 stdio.Out,
		Stderr:                 stdio.Err,
		AutoComplete:           complete.NewCompleter(s.Completion),
		DisableAutoSaveHistory: true,
		FuncIsTerminal:         func() bool { return interactive },
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	s.Readline = rl

	// Arrow-key navigation starts where the previous session left off.
	for _, e := range s.History.Entries() {
		_ = rl.SaveHistory(e.Text)
	}

	if interactive {
		s.Exec.EnableJobControl(stdio.In)
		// Writing to the terminal after a child owns it must not suspend
		// the shell.
		signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)
	}

	return s, nil
}

// seedDefaults fills the session variables login would have provided.
// Inherited values win.
func seedDefaults(store *env.Store, settings *config.Settings, interactive bool) {
	if _, ok := store.Lookup(env.VarHome); !ok {
		if home, err := os.UserHomeDir(); err == nil {
			store.Set(env.VarHome, home)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		store.Set(env.VarPWD, wd)
	}
	if _, ok := store.Lookup(env.VarHostname); !ok {
		if host, err := os.Hostname(); err == nil {
			store.Set(env.VarHostname, host)
		}
	}
	if _, ok := store.Lookup(env.VarUser); !ok {
		if u := os.Getenv("LOGNAME"); u != "" {
			store.Set(env.VarUser, u)
		}
	}
	if _, ok := store.Lookup(env.VarPath); !ok {
		store.Set(env.VarPath, "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	if _, ok := store.Lookup(env.VarPrompt); !ok {
		prompt := settings.Prompt
		if prompt == "" || prompt == DefaultPrompt {
			if interactive {
				prompt = DefaultColorPrompt
			} else {
				prompt = DefaultPrompt
			}
		}
		store.Set(env.VarPrompt, prompt)
	}
}

// Run is the session loop. It returns the shell's exit status: the exit
// builtin's argument, or the last command's status on EOF.
func (s *Shell) Run() int {
	for !s.quit {
		s.notifyJobs()
		s.Readline.SetPrompt(s.Prompt())

		line, err := s.Readline.Readline()
		switch {
		case err == io.EOF:
			return s.lastStatus
		case err == readline.ErrInterrupt:
			// Ctrl-C abandons the edit, never the session.
			continue
		case err != nil:
			fmt.Fprintf(s.stdio.Err, "marsh: %v\n", err)
			return s.lastStatus
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		s.RunLine(line)
		if err := s.History.Record(line); err != nil {
			fmt.Fprintf(s.stdio.Err, "marsh: history: %v\n", err)
		}
		_ = s.Readline.SaveHistory(line)
	}
	return s.quitStatus
}

// RunLine parses and executes one accepted line, returning its status.
// Errors are reported and absorbed; the session survives every line.
func (s *Shell) RunLine(line string) int {
	seq, err := parse.Parse(line, expand.New(s.Env))
	if err != nil {
		fmt.Fprintf(s.stdio.Err, "marsh: %v\n", err)
		s.lastStatus = exitSyntax
		return s.lastStatus
	}
	if seq.Empty() {
		return s.lastStatus
	}

	s.lastStatus = s.Exec.RunSequence(seq)
	return s.lastStatus
}

// notifyJobs reports background job transitions collected since the last
// prompt. Finished jobs leave the table once reported.
func (s *Shell) notifyJobs() {
	for _, j := range s.Exec.Reap() {
		switch j.State {
		case job.Done:
			fmt.Fprintf(s.stdio.Err, "[%d]+  Done\t%s\n", j.ID, j.Line)
			s.Exec.Jobs.Remove(j.ID)
		case job.Stopped:
			fmt.Fprintf(s.stdio.Err, "[%d]+  Stopped\t%s\n", j.ID, j.Line)
		}
	}
}

// Close restores the terminal and flushes history.
func (s *Shell) Close() error {
	var errs []error
	if s.Readline != nil {
		errs = append(errs, s.Readline.Close())
	}
	if s.History != nil {
		errs = append(errs, s.History.Close())
	}
	return errors.Join(errs...)
}
