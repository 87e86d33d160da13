// Package history keeps the shell's bounded command history and its
// persistent store.
package history

import (
	"iter"
	"strings"
	"time"
)

// Mode selects how Search matches entries against a query.
type Mode int

const (
	Prefix Mode = iota
	Substring
	Exact
)

// Entry is one recorded command line.
type Entry struct {
	Seq  int
	Text string
	Time time.Time
}

// Store persists history entries. Implementations must tolerate being
// handed entries faster than they flush; the manager calls Close on normal
// shell exit.
type Store interface {
	// Append adds one entry to the store.
	Append(e Entry) error
	// Load returns up to limit entries, oldest first.
	Load(limit int) ([]Entry, error)
	// Close prunes the store to keep at most the given number of entries
	// and releases it.
	Close(keep int) error
}

// Manager is an append-only, adjacency-deduplicated, size-bounded log of
// accepted command lines.
type Manager struct {
	entries  []Entry
	nextSeq  int
	capacity int
	store    Store
	now      func() time.Time
}

// New creates a Manager with the given capacity, loading prior entries from
// store. A nil store keeps history in memory only.
func New(capacity int, store Store) (*Manager, error) {
	m := &Manager{
		capacity: capacity,
		nextSeq:  1,
		store:    store,
		now:      time.Now,
	}

	if store != nil {
		loaded, err := store.Load(capacity)
		if err != nil {
			return nil, err
		}
		m.entries = loaded
		if n := len(loaded); n > 0 {
			m.nextSeq = loaded[n-1].Seq + 1
		}
	}
	return m, nil
}

// Record appends text to the history. Blank lines and lines identical to
// the immediately preceding entry are ignored. Non-adjacent duplicates are
// retained.
func (m *Manager) Record(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if n := len(m.entries); n > 0 && m.entries[n-1].Text == text {
		return nil
	}

	e := Entry{Seq: m.nextSeq, Text: text, Time: m.now()}
	m.nextSeq++
	m.entries = append(m.entries, e)

	// FIFO eviction once capacity is exceeded.
	if m.capacity > 0 && len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}

	if m.store != nil {
		return m.store.Append(e)
	}
	return nil
}

// Len returns the number of retained entries.
func (m *Manager) Len() int {
	return len(m.entries)
}

// Entries returns the retained entries, oldest first.
func (m *Manager) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Recent returns up to n entries, oldest first.
func (m *Manager) Recent(n int) []Entry {
	if n <= 0 || n >= len(m.entries) {
		return m.Entries()
	}
	return m.Entries()[len(m.entries)-n:]
}

// Clear drops all retained entries. The persistent store is pruned on
// Close.
func (m *Manager) Clear() {
	m.entries = nil
}

// Search returns matching entries most-recent-first. The sequence is lazy
// and restartable, so interactive callers can page without materializing
// the whole history.
func (m *Manager) Search(query string, mode Mode) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := len(m.entries) - 1; i >= 0; i-- {
			e := m.entries[i]
			if !matches(e.Text, query, mode) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

func matches(text, query string, mode Mode) bool {
	switch mode {
	case Substring:
		return strings.Contains(text, query)
	case Exact:
		return text == query
	default:
		return strings.HasPrefix(text, query)
	}
}

// Close flushes and prunes the persistent store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close(m.capacity)
}
