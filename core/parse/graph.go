package parse

import "strings"

// RedirMode selects how a redirection target is opened.
type RedirMode int

const (
	RedirRead RedirMode = iota
	RedirTrunc
	RedirAppend
)

func (m RedirMode) operator() string {
	switch m {
	case RedirRead:
		return opRedirIn
	case RedirAppend:
		return opAppend
	default:
		return opRedirOut
	}
}

// Redirection attaches a file to the edge of a simple command.
type Redirection struct {
	Path string
	Mode RedirMode
}

// SimpleCommand is a single executable invocation with arguments and
// redirections, fully expanded.
type SimpleCommand struct {
	Argv   []string
	Redirs []Redirection
}

func (c *SimpleCommand) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(c.Argv, " "))
	for _, r := range c.Redirs {
		sb.WriteString(" ")
		sb.WriteString(r.Mode.operator())
		sb.WriteString(" ")
		sb.WriteString(r.Path)
	}
	return sb.String()
}

// Pipeline is an ordered chain of simple commands connected by pipes.
type Pipeline struct {
	Stages     []*SimpleCommand
	Background bool
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.Stages))
	for i, st := range p.Stages {
		parts[i] = st.String()
	}
	out := strings.Join(parts, " | ")
	if p.Background {
		out += " &"
	}
	return out
}

// Connector decides whether the item it precedes runs, based on the exit
// status of the previous item.
type Connector int

const (
	// ConnAlways runs the item unconditionally (`;`).
	ConnAlways Connector = iota
	// ConnAndIf runs the item only if the previous status was zero (`&&`).
	ConnAndIf
	// ConnOrIf runs the item only if the previous status was non-zero (`||`).
	ConnOrIf
)

func (c Connector) String() string {
	switch c {
	case ConnAndIf:
		return opAndIf
	case ConnOrIf:
		return opOrIf
	default:
		return opSeq
	}
}

// Item is one pipeline in a sequence. Op is the connector joining it to the
// previous item; it is ConnAlways for the first item.
type Item struct {
	Op       Connector
	Pipeline *Pipeline
}

// Sequence is the root of a parsed line: pipelines joined by `;`, `&&` and
// `||`, evaluated strictly left to right.
type Sequence struct {
	Items []Item
}

// Empty reports whether the sequence contains no commands. An empty line
// parses to an empty sequence, which executes as a no-op.
func (s *Sequence) Empty() bool {
	return s == nil || len(s.Items) == 0
}

func (s *Sequence) String() string {
	var sb strings.Builder
	for i, item := range s.Items {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(item.Op.String())
			sb.WriteString(" ")
		}
		sb.WriteString(item.Pipeline.String())
	}
	return sb.String()
}
