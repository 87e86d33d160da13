package config

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/spf13/afero"

	"mar.sh/marsh/core/env"
	"mar.sh/marsh/core/expand"
	"mar.sh/marsh/core/parse"
)

// maxSourceDepth bounds nested `source` inclusion so an rc file that
// sources itself cannot loop.
const maxSourceDepth = 10

// Loader evaluates startup scripts: a line-oriented grammar of exports,
// aliases, conditional blocks and source inclusion. The recognized
// conditional tests are exactly -f, -d, -n, -z and string equality.
type Loader struct {
	Fs    afero.Fs
	Store *env.Store
	// Warn reports non-fatal problems such as unrecognized lines. May be
	// nil.
	Warn func(format string, args ...interface{})

	depth int
}

// NewLoader creates a Loader over the real filesystem.
func NewLoader(store *env.Store) *Loader {
	return &Loader{Fs: afero.NewOsFs(), Store: store}
}

func (l *Loader) warn(format string, args ...interface{}) {
	if l.Warn != nil {
		l.Warn(format, args...)
	}
}

// expand resolves tilde and $NAME references in an rc-file value.
func (l *Loader) expand(s string) string {
	x := expand.New(l.Store)
	return x.ExpandWord(parse.Word{Segments: []parse.Segment{{Text: s}}})
}

// SourceIfExists evaluates the script at path if it is present. A missing
// file is not an error.
func (l *Loader) SourceIfExists(path string) error {
	if ok, _ := afero.Exists(l.Fs, path); !ok {
		return nil
	}
	return l.Source(path)
}

// condFrame tracks one if/else/fi block.
type condFrame struct {
	parentActive bool
	active       bool
	taken        bool
	sawElse      bool
}

// Source evaluates the script at path against the store.
func (l *Loader) Source(path string) error {
	if l.depth >= maxSourceDepth {
		return fmt.Errorf("%s: source nesting too deep", path)
	}
	l.depth++
	defer func() { l.depth-- }()

	fd, err := l.Fs.Open(path)
	if err != nil {
		return err
	}
	defer fd.Close()

	var stack []condFrame
	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	scanner := bufio.NewScanner(fd)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "if "):
			parent := active()
			met := false
			if parent {
				met, err = l.evalTest(strings.TrimPrefix(line, "if "))
				if err != nil {
					return fmt.Errorf("%s:%d: %w", path, lineno, err)
				}
			}
			stack = append(stack, condFrame{
				parentActive: parent,
				active:       parent && met,
				taken:        met,
			})

		case line == "then":
			if len(stack) == 0 {
				return fmt.Errorf("%s:%d: `then` outside of `if`", path, lineno)
			}

		case line == "else":
			if len(stack) == 0 {
				return fmt.Errorf("%s:%d: `else` outside of `if`", path, lineno)
			}
			top := &stack[len(stack)-1]
			if top.sawElse {
				return fmt.Errorf("%s:%d: duplicate `else`", path, lineno)
			}
			top.sawElse = true
			top.active = top.parentActive && !top.taken

		case line == "fi":
			if len(stack) == 0 {
				return fmt.Errorf("%s:%d: `fi` outside of `if`", path, lineno)
			}
			stack = stack[:len(stack)-1]

		default:
			if !active() {
				continue
			}
			if err := l.directive(line); err != nil {
				return fmt.Errorf("%s:%d: %w", path, lineno, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(stack) != 0 {
		return fmt.Errorf("%s: missing `fi`", path)
	}
	return nil
}

// directive handles one active, non-structural line.
func (l *Loader) directive(line string) error {
	tokens, err := shlex.Split(line, true)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	switch tokens[0] {
	case "export":
		for _, arg := range tokens[1:] {
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				l.warn("rc: export without value: %s", arg)
				continue
			}
			l.Store.Set(name, l.expand(value))
		}
		return nil

	case "alias":
		for _, arg := range tokens[1:] {
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				l.warn("rc: alias without value: %s", arg)
				continue
			}
			l.Store.SetAlias(name, value)
		}
		return nil

	case "source", ".":
		if len(tokens) < 2 {
			return fmt.Errorf("source: missing path")
		}
		return l.SourceIfExists(l.expand(tokens[1]))
	}

	// Bare NAME=value assignment, e.g. PATH=/usr/local/bin:$PATH.
	if name, value, ok := strings.Cut(tokens[0], "="); ok && name != "" && len(tokens) == 1 {
		l.Store.Set(name, l.expand(value))
		return nil
	}

	l.warn("rc: ignoring unsupported line: %s", line)
	return nil
}

// evalTest evaluates a `[ ... ]` condition, optionally followed by
// `; then`.
func (l *Loader) evalTest(cond string) (bool, error) {
	cond = strings.TrimSpace(cond)
	cond = strings.TrimSuffix(cond, "then")
	cond = strings.TrimSpace(cond)
	cond = strings.TrimSuffix(cond, ";")
	cond = strings.TrimSpace(cond)

	if !strings.HasPrefix(cond, "[") || !strings.HasSuffix(cond, "]") {
		return false, fmt.Errorf("unsupported condition: %s", cond)
	}
	cond = strings.TrimSpace(cond[1 : len(cond)-1])

	tokens, err := shlex.Split(cond, true)
	if err != nil {
		return false, err
	}

	switch {
	case len(tokens) == 2 && tokens[0] == "-f":
		fi, err := l.Fs.Stat(l.expand(tokens[1]))
		return err == nil && !fi.IsDir(), nil

	case len(tokens) == 2 && tokens[0] == "-d":
		fi, err := l.Fs.Stat(l.expand(tokens[1]))
		return err == nil && fi.IsDir(), nil

	case len(tokens) == 2 && tokens[0] == "-n":
		return l.expand(tokens[1]) != "", nil

	case len(tokens) == 2 && tokens[0] == "-z":
		return l.expand(tokens[1]) == "", nil

	case len(tokens) == 3 && tokens[1] == "=":
		return l.expand(tokens[0]) == l.expand(tokens[2]), nil
	}

	return false, fmt.Errorf("unsupported test: [ %s ]", cond)
}
