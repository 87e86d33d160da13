package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	getopt "github.com/pborman/getopt/v2"

	"mar.sh/marsh/core/complete"
	"mar.sh/marsh/core/config"
	"mar.sh/marsh/core/env"
	"mar.sh/marsh/core/history"
	"mar.sh/marsh/core/job"
)

// dispatcher satisfies job.Builtins over a Shell.
type dispatcher struct{ s *Shell }

func (d dispatcher) IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func (d dispatcher) Run(argv []string, stdio job.IO) int {
	fn, ok := builtins[argv[0]]
	if !ok {
		return job.ExitNotFound
	}
	return fn(d.s, argv, stdio)
}

type builtinFunc func(s *Shell, argv []string, stdio job.IO) int

var builtins map[string]builtinFunc

// Assigned in init: several builtins reach back into the table (through
// builtinNames), which a composite literal initializer may not do.
func init() {
	builtins = map[string]builtinFunc{
		"cd":       builtinCd,
		"pwd":      builtinPwd,
		"exit":     builtinExit,
		"source":   builtinSource,
		".":        builtinSource,
		"alias":    builtinAlias,
		"unalias":  builtinUnalias,
		"export":   builtinExport,
		"unset":    builtinUnset,
		"history":  builtinHistory,
		"jobs":     builtinJobs,
		"fg":       builtinFg,
		"bg":       builtinBg,
		"complete": builtinComplete,
	}
}

// builtinNames returns the builtin command names, sorted, for completion.
func builtinNames() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// builtinFlags feeds flag completion.
func builtinFlags(name string) []string {
	switch name {
	case "history":
		return []string{"-c", "-e", "-n", "-p", "-s"}
	default:
		return nil
	}
}

func builtinCd(s *Shell, argv []string, stdio job.IO) int {
	if len(argv) > 2 {
		fmt.Fprintln(stdio.Err, "cd: too many arguments")
		return job.ExitFailure
	}

	var target string
	switch {
	case len(argv) == 1:
		target = s.Env.Home()
		if target == "" {
			fmt.Fprintln(stdio.Err, "cd: HOME not set")
			return job.ExitFailure
		}
	case argv[1] == "-":
		target = s.Env.Get(env.VarOldPWD)
		if target == "" {
			fmt.Fprintln(stdio.Err, "cd: OLDPWD not set")
			return job.ExitFailure
		}
		fmt.Fprintln(stdio.Out, target)
	default:
		target = argv[1]
	}

	if err := os.Chdir(target); err != nil {
		fmt.Fprintf(stdio.Err, "cd: %v\n", err)
		return job.ExitFailure
	}

	old := s.Env.Get(env.VarPWD)
	wd, err := os.Getwd()
	if err != nil {
		wd = target
	}
	s.Env.Set(env.VarOldPWD, old)
	s.Env.Set(env.VarPWD, wd)
	return 0
}

func builtinPwd(s *Shell, argv []string, stdio job.IO) int {
	wd := s.Env.Get(env.VarPWD)
	if wd == "" {
		var err error
		wd, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(stdio.Err, "pwd: %v\n", err)
			return job.ExitFailure
		}
	}
	fmt.Fprintln(stdio.Out, wd)
	return 0
}

func builtinExit(s *Shell, argv []string, stdio job.IO) int {
	code := s.lastStatus
	if len(argv) > 1 {
		n, err := strconv.Atoi(argv[1])
		if err != nil || n < 0 || n > 255 {
			fmt.Fprintf(stdio.Err, "exit: %s: numeric argument in [0,255] required\n", argv[1])
			return job.ExitFailure
		}
		code = n
	}
	s.quit = true
	s.quitStatus = code
	return code
}

func builtinSource(s *Shell, argv []string, stdio job.IO) int {
	if len(argv) != 2 {
		fmt.Fprintf(stdio.Err, "%s: usage: %s <file>\n", argv[0], argv[0])
		return job.ExitFailure
	}

	loader := config.NewLoader(s.Env)
	loader.Warn = func(format string, args ...interface{}) {
		fmt.Fprintf(stdio.Err, "%s: "+format+"\n", append([]interface{}{argv[0]}, args...)...)
	}
	if err := loader.Source(argv[1]); err != nil {
		fmt.Fprintf(stdio.Err, "%s: %v\n", argv[0], err)
		return job.ExitFailure
	}
	return 0
}

func builtinAlias(s *Shell, argv []string, stdio job.IO) int {
	if len(argv) == 1 {
		aliases := s.Env.Aliases()
		for _, name := range s.Env.AliasNames() {
			fmt.Fprintf(stdio.Out, "alias %s='%s'\n", name, aliases[name])
		}
		return 0
	}

	status := 0
	for _, arg := range argv[1:] {
		name, value, found := strings.Cut(arg, "=")
		if found {
			s.Env.SetAlias(name, value)
			continue
		}
		if value, ok := s.Env.Alias(name); ok {
			fmt.Fprintf(stdio.Out, "alias %s='%s'\n", name, value)
		} else {
			fmt.Fprintf(stdio.Err, "alias: %s: not found\n", name)
			status = job.ExitFailure
		}
	}
	return status
}

func builtinUnalias(s *Shell, argv []string, stdio job.IO) int {
	if len(argv) == 1 {
		fmt.Fprintln(stdio.Err, "unalias: usage: unalias name [name ...]")
		return job.ExitFailure
	}

	status := 0
	for _, name := range argv[1:] {
		if _, ok := s.Env.Alias(name); !ok {
			fmt.Fprintf(stdio.Err, "unalias: %s: not found\n", name)
			status = job.ExitFailure
			continue
		}
		s.Env.Unalias(name)
	}
	return status
}

func builtinExport(s *Shell, argv []string, stdio job.IO) int {
	if len(argv) == 1 {
		for _, kv := range s.Env.Environ() {
			fmt.Fprintf(stdio.Out, "export %s\n", kv)
		}
		return 0
	}

	for _, arg := range argv[1:] {
		name, value, found := strings.Cut(arg, "=")
		if !found {
			// Every variable is exported already; a bare name is a no-op.
			continue
		}
		s.Env.Set(name, value)
	}
	return 0
}

func builtinUnset(s *Shell, argv []string, stdio job.IO) int {
	if len(argv) == 1 {
		fmt.Fprintln(stdio.Err, "unset: usage: unset name [name ...]")
		return job.ExitFailure
	}
	for _, name := range argv[1:] {
		s.Env.Unset(name)
	}
	return 0
}

func builtinHistory(s *Shell, argv []string, stdio job.IO) int {
	set := getopt.New()
	clear := set.BoolLong("clear", 'c', "delete the entire history")
	last := set.IntLong("lines", 'n', 0, "show only the last N entries")
	prefix := set.StringLong("prefix", 'p', "", "entries starting with the query")
	substr := set.StringLong("search", 's', "", "entries containing the query")
	exact := set.StringLong("exact", 'e', "", "entries equal to the query")

	if err := set.Getopt(argv, nil); err != nil {
		fmt.Fprintf(stdio.Err, "history: %v\n", err)
		return job.ExitFailure
	}

	if *clear {
		s.History.Clear()
		return 0
	}

	printEntry := func(e history.Entry) {
		fmt.Fprintf(stdio.Out, "%5d  %s\n", e.Seq, e.Text)
	}

	switch {
	case *prefix != "":
		for e := range s.History.Search(*prefix, history.Prefix) {
			printEntry(e)
		}
	case *substr != "":
		for e := range s.History.Search(*substr, history.Substring) {
			printEntry(e)
		}
	case *exact != "":
		for e := range s.History.Search(*exact, history.Exact) {
			printEntry(e)
		}
	default:
		entries := s.History.Entries()
		if *last > 0 && len(entries) > *last {
			entries = entries[len(entries)-*last:]
		}
		for _, e := range entries {
			printEntry(e)
		}
	}
	return 0
}

var jobStateColors = map[job.State]*color.Color{
	job.Running: color.New(color.FgGreen),
	job.Stopped: color.New(color.FgYellow),
	job.Done:    color.New(color.Faint),
}

func builtinJobs(s *Shell, argv []string, stdio job.IO) int {
	for _, j := range s.Exec.Jobs.Jobs() {
		state := j.State.String()
		if c, ok := jobStateColors[j.State]; ok {
			state = c.Sprint(state)
		}
		fmt.Fprintf(stdio.Out, "[%d]  %-8s  %s\n", j.ID, state, j.Line)
	}
	return 0
}

// parseJobRef accepts `%N` and plain `N` job references; 0 means the most
// recent job.
func parseJobRef(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	ref := strings.TrimPrefix(args[0], "%")
	id, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("%s: no such job", args[0])
	}
	return id, nil
}

func builtinFg(s *Shell, argv []string, stdio job.IO) int {
	id, err := parseJobRef(argv[1:])
	if err != nil {
		fmt.Fprintf(stdio.Err, "fg: %v\n", err)
		return job.ExitFailure
	}
	status, err := s.Exec.Continue(id, true)
	if err != nil {
		fmt.Fprintf(stdio.Err, "fg: %v\n", err)
		return job.ExitFailure
	}
	return status
}

func builtinBg(s *Shell, argv []string, stdio job.IO) int {
	id, err := parseJobRef(argv[1:])
	if err != nil {
		fmt.Fprintf(stdio.Err, "bg: %v\n", err)
		return job.ExitFailure
	}
	status, err := s.Exec.Continue(id, false)
	if err != nil {
		fmt.Fprintf(stdio.Err, "bg: %v\n", err)
		return job.ExitFailure
	}
	return status
}

// builtinComplete prints the completion candidates for the given partial
// line, one per row with kind and hint columns. Mostly a debugging aid.
func builtinComplete(s *Shell, argv []string, stdio job.IO) int {
	engine := s.Completion
	if engine == nil {
		engine = complete.NewEngine(s.Env)
		engine.Builtins = builtinNames()
		engine.BuiltinFlags = builtinFlags
	}

	line := strings.Join(argv[1:], " ")
	for _, c := range engine.Complete(line, len(line)) {
		if c.Hint != "" {
			fmt.Fprintf(stdio.Out, "%-24s %-8s %s\n", c.Text, c.Kind, c.Hint)
		} else {
			fmt.Fprintf(stdio.Out, "%-24s %s\n", c.Text, c.Kind)
		}
	}
	return 0
}
