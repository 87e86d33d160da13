// Package expand resolves tilde, variable and alias references in command
// line words against an environment snapshot.
package expand

import (
	"strings"

	"github.com/anmitsu/go-shlex"

	"mar.sh/marsh/core/env"
	"mar.sh/marsh/core/parse"
)

// Expander is a pure function of (word, store snapshot). It implements
// parse.Expander.
type Expander struct {
	store *env.Store
}

var _ parse.Expander = (*Expander)(nil)

// New creates an Expander over the given store.
func New(store *env.Store) *Expander {
	return &Expander{store: store}
}

// ExpandWord resolves, in order, a leading unquoted tilde and $NAME/${NAME}
// variable references. Single-quoted segments pass through verbatim;
// double-quoted segments get variable expansion only. Undefined variables
// expand to the empty string.
func (x *Expander) ExpandWord(w parse.Word) string {
	var sb strings.Builder
	for i, seg := range w.Segments {
		switch seg.Quote {
		case parse.SingleQuoted:
			sb.WriteString(seg.Text)
		case parse.DoubleQuoted:
			sb.WriteString(x.expandVars(seg.Text))
		default:
			text := seg.Text
			if i == 0 {
				text = x.expandTilde(text)
			}
			sb.WriteString(x.expandVars(text))
		}
	}
	return sb.String()
}

// ExpandCommandWord expands a word in command position: tilde and variable
// expansion first, then alias substitution. Alias chains are followed, but
// each alias name is substituted at most once so a self-referencing or
// cyclic alias cannot loop.
func (x *Expander) ExpandCommandWord(w parse.Word) ([]string, error) {
	head := x.ExpandWord(w)
	if head == "" {
		return nil, nil
	}
	if w.Quoted() {
		// Quoting suppresses alias substitution.
		return []string{head}, nil
	}

	words := []string{head}
	seen := map[string]bool{}
	for {
		name := words[0]
		value, ok := x.store.Alias(name)
		if !ok || seen[name] {
			break
		}
		seen[name] = true

		parts, err := shlex.Split(value, true)
		if err != nil {
			return nil, err
		}
		for i, part := range parts {
			parts[i] = x.expandVars(part)
		}
		words = append(parts, words[1:]...)
		if len(words) == 0 {
			break
		}
	}
	return words, nil
}

// expandTilde replaces a leading ~ with $HOME when it stands alone or
// starts a path. ~user form is left untouched.
func (x *Expander) expandTilde(s string) string {
	if !strings.HasPrefix(s, "~") {
		return s
	}
	home := x.store.Home()
	if home == "" {
		return s
	}
	if s == "~" {
		return home
	}
	if strings.HasPrefix(s, "~/") {
		return home + s[1:]
	}
	return s
}

func isNameStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || ('0' <= c && c <= '9')
}

// expandVars substitutes $NAME and ${NAME} references. A $ that does not
// introduce a valid name is kept literally.
func (x *Expander) expandVars(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' || i+1 >= len(s) {
			sb.WriteByte(c)
			i++
			continue
		}

		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				sb.WriteByte(c)
				i++
				continue
			}
			name := s[i+2 : i+2+end]
			sb.WriteString(x.store.Get(name))
			i += 2 + end + 1
			continue
		}

		if !isNameStart(s[i+1]) {
			sb.WriteByte(c)
			i++
			continue
		}

		j := i + 1
		for j < len(s) && isNameChar(s[j]) {
			j++
		}
		sb.WriteString(x.store.Get(s[i+1 : j]))
		i = j
	}
	return sb.String()
}
