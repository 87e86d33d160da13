package complete

import (
	"strings"

	"github.com/abiosoft/readline"
)

// Completer adapts an Engine to readline's AutoCompleter interface.
type Completer struct {
	engine *Engine
}

var _ readline.AutoCompleter = (*Completer)(nil)

// NewCompleter wraps the engine for use as a readline.Config.AutoComplete.
func NewCompleter(engine *Engine) *Completer {
	return &Completer{engine: engine}
}

// Do returns candidate suffixes for the word under the cursor, in readline
// convention: the text to append plus the length of the prefix being
// completed.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	prefix := string(line[:pos])
	word, _, _ := c.engine.WordAt(prefix, len(prefix))

	var out [][]rune
	for _, cand := range c.engine.Complete(prefix, len(prefix)) {
		suffix, ok := strings.CutPrefix(cand.Text, word)
		if !ok {
			continue
		}
		// Directories stay open for further completion; everything else
		// closes the word.
		if !strings.HasSuffix(cand.Text, "/") {
			suffix += " "
		}
		out = append(out, []rune(suffix))
	}

	return out, len([]rune(word))
}
