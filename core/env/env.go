// Package env holds the shell's process-wide environment: variables,
// aliases and the command search path.
package env

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Well-known variable names.
const (
	VarHome     = "HOME"
	VarPWD      = "PWD"
	VarOldPWD   = "OLDPWD"
	VarPath     = "PATH"
	VarPrompt   = "PS1"
	VarHostname = "HOSTNAME"
	VarUser     = "USER"
)

// Store is the single-owner environment threaded through expansion,
// parsing and execution. Mutation is append-or-overwrite, never partial.
type Store struct {
	mu      sync.RWMutex
	vars    map[string]string
	aliases map[string]string
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		vars:    make(map[string]string),
		aliases: make(map[string]string),
	}
}

// NewStoreFromEnviron creates a Store seeded with "KEY=value" pairs as
// returned by os.Environ.
func NewStoreFromEnviron(environ []string) *Store {
	s := NewStore()
	for _, e := range environ {
		key, value, _ := strings.Cut(e, "=")
		s.vars[key] = value
	}
	return s
}

// Get returns the value of the named variable, or "" if unset.
func (s *Store) Get(name string) string {
	v, _ := s.Lookup(name)
	return v
}

// Lookup returns the value of the named variable and whether it is set.
func (s *Store) Lookup(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

// Set sets or overwrites a variable.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// Unset removes a variable.
func (s *Store) Unset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vars, name)
}

// Environ returns the variables as a sorted "KEY=value" list suitable for
// passing to a child process.
func (s *Store) Environ() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.vars))
	for k, v := range s.vars {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// Home returns the user's home directory per $HOME.
func (s *Store) Home() string {
	return s.Get(VarHome)
}

// PathEntries returns the ordered command search path derived from $PATH.
// Empty entries are dropped.
func (s *Store) PathEntries() []string {
	var out []string
	for _, dir := range strings.Split(s.Get(VarPath), ":") {
		if dir != "" {
			out = append(out, dir)
		}
	}
	return out
}

// Alias returns the expansion of the named alias and whether it exists.
func (s *Store) Alias(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.aliases[name]
	return v, ok
}

// SetAlias sets or overwrites an alias.
func (s *Store) SetAlias(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[name] = value
}

// Unalias removes an alias.
func (s *Store) Unalias(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aliases, name)
}

// Aliases returns a copy of the alias table.
func (s *Store) Aliases() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.aliases))
	for k, v := range s.aliases {
		out[k] = v
	}
	return out
}

// AliasNames returns the alias names in sorted order.
func (s *Store) AliasNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.aliases))
	for k := range s.aliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
