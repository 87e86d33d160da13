package parse

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is reported when a quote opened on the line is never
// closed.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Quote records how a word segment was quoted on the command line. Quoting
// controls which expansions apply to the segment.
type Quote int

const (
	// Unquoted segments get tilde, variable and alias expansion.
	Unquoted Quote = iota
	// SingleQuoted segments are passed through verbatim.
	SingleQuoted
	// DoubleQuoted segments get variable expansion only.
	DoubleQuoted
)

// Segment is a contiguous span of a word with uniform quoting.
type Segment struct {
	Text  string
	Quote Quote
}

// Word is one lexical word: adjacent segments that form a single field,
// e.g. `pre"mid"post` is one word of three segments.
type Word struct {
	Segments []Segment
}

// Literal returns the word's text with quoting stripped.
func (w Word) Literal() string {
	var sb strings.Builder
	for _, seg := range w.Segments {
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// Quoted reports whether any part of the word was quoted.
func (w Word) Quoted() bool {
	for _, seg := range w.Segments {
		if seg.Quote != Unquoted {
			return true
		}
	}
	return false
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenOp
)

// Operator spellings produced by the lexer.
const (
	opPipe     = "|"
	opSeq      = ";"
	opAndIf    = "&&"
	opOrIf     = "||"
	opBg       = "&"
	opRedirIn  = "<"
	opRedirOut = ">"
	opAppend   = ">>"
)

type token struct {
	kind tokenKind
	word Word // valid when kind == tokenWord
	op   string
}

// lex splits a raw line into word and operator tokens, tracking quote
// state. A backslash outside single quotes escapes the next character; the
// escaped character is recorded as a single-quoted segment so later
// expansion leaves it alone.
func lex(line string) ([]token, error) {
	var (
		tokens []token
		segs   []Segment
		cur    strings.Builder
		quote  = Unquoted
	)

	flushSeg := func(q Quote) {
		if cur.Len() > 0 {
			segs = append(segs, Segment{Text: cur.String(), Quote: q})
			cur.Reset()
		}
	}
	flushWord := func() {
		flushSeg(Unquoted)
		if len(segs) > 0 {
			tokens = append(tokens, token{kind: tokenWord, word: Word{Segments: segs}})
			segs = nil
		}
	}
	emitOp := func(op string) {
		flushWord()
		tokens = append(tokens, token{kind: tokenOp, op: op})
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch quote {
		case SingleQuoted:
			if c == '\'' {
				flushSeg(SingleQuoted)
				// Keep an explicit empty segment so '' produces a word.
				if len(segs) == 0 && cur.Len() == 0 {
					segs = append(segs, Segment{Quote: SingleQuoted})
				}
				quote = Unquoted
			} else {
				cur.WriteRune(c)
			}

		case DoubleQuoted:
			switch c {
			case '"':
				flushSeg(DoubleQuoted)
				if len(segs) == 0 && cur.Len() == 0 {
					segs = append(segs, Segment{Quote: DoubleQuoted})
				}
				quote = Unquoted
			case '\\':
				if i+1 < len(runes) {
					next := runes[i+1]
					if next == '"' || next == '$' || next == '\\' {
						flushSeg(DoubleQuoted)
						cur.WriteRune(next)
						flushSeg(SingleQuoted)
						i++
						continue
					}
				}
				cur.WriteRune(c)
			default:
				cur.WriteRune(c)
			}

		default: // Unquoted
			switch {
			case c == '\'':
				flushSeg(Unquoted)
				quote = SingleQuoted
			case c == '"':
				flushSeg(Unquoted)
				quote = DoubleQuoted
			case c == '\\':
				if i+1 < len(runes) {
					flushSeg(Unquoted)
					cur.WriteRune(runes[i+1])
					flushSeg(SingleQuoted)
					i++
				} else {
					cur.WriteRune(c)
				}
			case c == ' ' || c == '\t':
				flushWord()
			case c == '|':
				if i+1 < len(runes) && runes[i+1] == '|' {
					emitOp(opOrIf)
					i++
				} else {
					emitOp(opPipe)
				}
			case c == '&':
				if i+1 < len(runes) && runes[i+1] == '&' {
					emitOp(opAndIf)
					i++
				} else {
					emitOp(opBg)
				}
			case c == ';':
				emitOp(opSeq)
			case c == '<':
				emitOp(opRedirIn)
			case c == '>':
				if i+1 < len(runes) && runes[i+1] == '>' {
					emitOp(opAppend)
					i++
				} else {
					emitOp(opRedirOut)
				}
			default:
				cur.WriteRune(c)
			}
		}
	}

	if quote != Unquoted {
		return nil, ErrUnterminatedQuote
	}
	flushWord()

	return tokens, nil
}
