// Package complete produces ranked completion candidates for a partial
// command line, consulting the environment store and the filesystem.
package complete

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"mar.sh/marsh/core/env"
)

// Kind classifies a completion candidate.
type Kind int

const (
	KindCommand Kind = iota
	KindAlias
	KindPath
	KindFlag
)

func (k Kind) String() string {
	switch k {
	case KindAlias:
		return "alias"
	case KindPath:
		return "path"
	case KindFlag:
		return "flag"
	default:
		return "command"
	}
}

// Candidate is one completion suggestion. Hint carries extra display-only
// context, e.g. an alias's expansion.
type Candidate struct {
	Text string
	Kind Kind
	Hint string
}

// Engine computes candidates against an environment store and a filesystem
// namespace. Candidates are recomputed per keystroke and never cached.
type Engine struct {
	Env   *env.Store
	Fs    afero.Fs
	Getwd func() (string, error)

	// Builtins are offered in command position alongside path executables.
	Builtins []string
	// BuiltinFlags returns the known flag spellings of a builtin, used for
	// flag completion. May be nil.
	BuiltinFlags func(name string) []string
}

// NewEngine creates an Engine over the real filesystem.
func NewEngine(store *env.Store) *Engine {
	return &Engine{
		Env:   store,
		Fs:    afero.NewOsFs(),
		Getwd: os.Getwd,
	}
}

func isWordBreak(c byte) bool {
	switch c {
	case ' ', '\t', '|', ';', '&', '<', '>':
		return true
	}
	return false
}

// WordAt locates the word under the cursor: its text, its byte offset in
// line, and whether it sits in command position.
func (e *Engine) WordAt(line string, cursor int) (word string, start int, commandPos bool) {
	if cursor > len(line) {
		cursor = len(line)
	}

	start = cursor
	for start > 0 && !isWordBreak(line[start-1]) {
		start--
	}
	word = line[start:cursor]

	// Walk back over whitespace to the token that precedes this word.
	i := start
	for i > 0 && (line[i-1] == ' ' || line[i-1] == '\t') {
		i--
	}
	if i == 0 {
		return word, start, true
	}
	switch line[i-1] {
	case '|', ';', '&':
		return word, start, true
	}
	return word, start, false
}

// commandName returns the first word of the simple command containing the
// cursor position.
func (e *Engine) commandName(line string, start int) string {
	boundary := 0
	for i := start - 1; i >= 0; i-- {
		if c := line[i]; c == '|' || c == ';' || c == '&' {
			boundary = i + 1
			break
		}
	}
	fields := strings.Fields(line[boundary:start])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Complete produces ordered candidates for the word under the cursor. An
// empty result is not an error.
func (e *Engine) Complete(line string, cursor int) []Candidate {
	word, start, commandPos := e.WordAt(line, cursor)

	switch {
	case commandPos && !strings.ContainsAny(word, "/~"):
		return e.completeCommand(word)
	case strings.HasPrefix(word, "-"):
		return e.completeFlags(e.commandName(line, start), word)
	default:
		return e.completePath(word)
	}
}

// completeCommand unions aliases, builtins and path executables matching
// the prefix. Aliases rank before commands; each group is alphabetical.
func (e *Engine) completeCommand(prefix string) []Candidate {
	var aliases, commands []Candidate

	table := e.Env.Aliases()
	for _, name := range e.Env.AliasNames() {
		if strings.HasPrefix(name, prefix) {
			aliases = append(aliases, Candidate{Text: name, Kind: KindAlias, Hint: table[name]})
		}
	}

	seen := map[string]bool{}
	for _, name := range e.Builtins {
		if strings.HasPrefix(name, prefix) && !seen[name] {
			seen[name] = true
			commands = append(commands, Candidate{Text: name, Kind: KindCommand})
		}
	}
	for _, dir := range e.Env.PathEntries() {
		infos, err := afero.ReadDir(e.Fs, dir)
		if err != nil {
			continue
		}
		for _, fi := range infos {
			name := fi.Name()
			if fi.IsDir() || seen[name] || !strings.HasPrefix(name, prefix) {
				continue
			}
			if fi.Mode()&0111 == 0 {
				continue
			}
			seen[name] = true
			commands = append(commands, Candidate{Text: name, Kind: KindCommand})
		}
	}

	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Text < aliases[j].Text })
	sort.Slice(commands, func(i, j int) bool { return commands[i].Text < commands[j].Text })
	return append(aliases, commands...)
}

// completePath suggests filesystem entries for the word, tilde-expanded
// and relative to the working directory. Directories get a trailing
// separator so completion can continue into them.
func (e *Engine) completePath(word string) []Candidate {
	dirPart := ""
	base := word
	if i := strings.LastIndexByte(word, '/'); i >= 0 {
		dirPart = word[:i+1]
		base = word[i+1:]
	}

	searchDir := e.expandTilde(dirPart)
	if searchDir == "" {
		searchDir = "."
	}
	if !path.IsAbs(searchDir) {
		wd, err := e.Getwd()
		if err != nil {
			return nil
		}
		searchDir = path.Join(wd, searchDir)
	}

	infos, err := afero.ReadDir(e.Fs, searchDir)
	if err != nil {
		return nil
	}

	var out []Candidate
	for _, fi := range infos {
		name := fi.Name()
		if !strings.HasPrefix(name, base) {
			continue
		}
		if base == "" && strings.HasPrefix(name, ".") {
			continue
		}
		text := dirPart + name
		if fi.IsDir() {
			text += "/"
		}
		out = append(out, Candidate{Text: text, Kind: KindPath})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// completeFlags suggests known flags for builtins.
func (e *Engine) completeFlags(command, prefix string) []Candidate {
	if e.BuiltinFlags == nil {
		return nil
	}

	var out []Candidate
	for _, flag := range e.BuiltinFlags(command) {
		if strings.HasPrefix(flag, prefix) {
			out = append(out, Candidate{Text: flag, Kind: KindFlag})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

func (e *Engine) expandTilde(p string) string {
	home := e.Env.Home()
	if home == "" {
		return p
	}
	if p == "~" || p == "~/" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return home + p[1:]
	}
	return p
}
