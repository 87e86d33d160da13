// Package parse turns raw command lines into executable command graphs:
// sequences of pipelines of simple commands.
package parse

import "fmt"

// Expander resolves a word against the environment before it becomes part
// of the command graph. Implemented by expand.Expander; the indirection
// keeps parsing a pure function of (line, expander snapshot).
type Expander interface {
	// ExpandWord resolves tilde and variable references in an argument
	// position word.
	ExpandWord(w Word) string
	// ExpandCommandWord additionally applies alias substitution; the result
	// may be several words when the alias expansion is multi-word.
	ExpandCommandWord(w Word) ([]string, error)
}

// LiteralExpander performs no expansion. Useful for tests and for tools
// that only care about line structure.
type LiteralExpander struct{}

func (LiteralExpander) ExpandWord(w Word) string { return w.Literal() }

func (LiteralExpander) ExpandCommandWord(w Word) ([]string, error) {
	return []string{w.Literal()}, nil
}

// MissingRedirectTargetError is reported when a redirection operator has no
// target path after it.
type MissingRedirectTargetError struct {
	Op string
}

func (e *MissingRedirectTargetError) Error() string {
	return fmt.Sprintf("missing redirection target after %q", e.Op)
}

// SyntaxError is reported for structurally malformed lines, such as an
// empty command between connectors.
type SyntaxError struct {
	Near string
}

func (e *SyntaxError) Error() string {
	if e.Near == "" {
		return "syntax error: unexpected end of line"
	}
	return fmt.Sprintf("syntax error near %q", e.Near)
}

// Parse tokenizes line and builds its command graph, expanding each word
// through x. An empty or blank line yields an empty sequence.
func Parse(line string, x Expander) (*Sequence, error) {
	tokens, err := lex(line)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, expander: x}
	return p.sequence()
}

type parser struct {
	tokens   []token
	pos      int
	expander Expander

	seq      Sequence
	pipeline *Pipeline
	cmd      *SimpleCommand
	nextOp   Connector
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

// sequence is the single-pass, left-to-right parse loop. Connectors are
// left-associative so no precedence climbing is needed.
func (p *parser) sequence() (*Sequence, error) {
	for {
		t, ok := p.next()
		if !ok {
			break
		}

		switch t.kind {
		case tokenWord:
			if err := p.word(t.word); err != nil {
				return nil, err
			}

		case tokenOp:
			switch t.op {
			case opRedirIn, opRedirOut, opAppend:
				if err := p.redirection(t.op); err != nil {
					return nil, err
				}
			case opPipe:
				if err := p.finishStage(t.op); err != nil {
					return nil, err
				}
			case opSeq, opAndIf, opOrIf:
				if err := p.finishPipeline(t.op, false); err != nil {
					return nil, err
				}
			case opBg:
				if err := p.finishPipeline(t.op, true); err != nil {
					return nil, err
				}
			}
		}
	}

	// A trailing connector promises a command that never came.
	if p.pipeline != nil && p.cmd == nil {
		return nil, &SyntaxError{}
	}
	if p.cmd == nil && p.nextOp != ConnAlways {
		return nil, &SyntaxError{}
	}
	if err := p.closeItem(false); err != nil {
		return nil, err
	}

	return &p.seq, nil
}

func (p *parser) word(w Word) error {
	if p.cmd == nil {
		argv, err := p.expander.ExpandCommandWord(w)
		if err != nil {
			return err
		}
		if len(argv) == 0 {
			// Command word expanded to nothing; wait for the next word.
			return nil
		}
		p.cmd = &SimpleCommand{Argv: argv}
		return nil
	}

	expanded := p.expander.ExpandWord(w)
	if expanded == "" && !w.Quoted() {
		return nil // empty unquoted expansion produces no field
	}
	p.cmd.Argv = append(p.cmd.Argv, expanded)
	return nil
}

func (p *parser) redirection(op string) error {
	if p.cmd == nil {
		return &SyntaxError{Near: op}
	}

	t, ok := p.next()
	if !ok || t.kind != tokenWord {
		return &MissingRedirectTargetError{Op: op}
	}

	mode := RedirTrunc
	switch op {
	case opRedirIn:
		mode = RedirRead
	case opAppend:
		mode = RedirAppend
	}

	p.cmd.Redirs = append(p.cmd.Redirs, Redirection{
		Path: p.expander.ExpandWord(t.word),
		Mode: mode,
	})
	return nil
}

// finishStage closes the current simple command as a pipeline stage.
func (p *parser) finishStage(op string) error {
	if p.cmd == nil {
		return &SyntaxError{Near: op}
	}
	if p.pipeline == nil {
		p.pipeline = &Pipeline{}
	}
	p.pipeline.Stages = append(p.pipeline.Stages, p.cmd)
	p.cmd = nil
	return nil
}

// finishPipeline closes the current pipeline as a sequence item and records
// the connector for the item that follows.
func (p *parser) finishPipeline(op string, background bool) error {
	if p.cmd == nil && p.pipeline == nil {
		return &SyntaxError{Near: op}
	}
	if p.cmd == nil {
		// e.g. "a | ;" leaves a dangling pipe.
		return &SyntaxError{Near: op}
	}
	if err := p.closeItem(background); err != nil {
		return err
	}

	switch op {
	case opAndIf:
		p.nextOp = ConnAndIf
	case opOrIf:
		p.nextOp = ConnOrIf
	default:
		p.nextOp = ConnAlways
	}
	return nil
}

func (p *parser) closeItem(background bool) error {
	if p.cmd != nil {
		if err := p.finishStage(""); err != nil {
			return err
		}
	}
	if p.pipeline == nil {
		return nil
	}

	p.pipeline.Background = background
	p.seq.Items = append(p.seq.Items, Item{Op: p.nextOp, Pipeline: p.pipeline})
	p.pipeline = nil
	p.nextOp = ConnAlways
	return nil
}
