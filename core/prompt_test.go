package core

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"mar.sh/marsh/core/env"
)

func promptShell(vars map[string]string) *Shell {
	store := env.NewStore()
	for k, v := range vars {
		store.Set(k, v)
	}
	return &Shell{Env: store}
}

func marker() string {
	if os.Getuid() == 0 {
		return "#"
	}
	return "$"
}

func TestPrompt(t *testing.T) {
	s := promptShell(map[string]string{
		env.VarPrompt:   `\u@\h:\w\$ `,
		env.VarUser:     "alice",
		env.VarHostname: "box",
		env.VarHome:     "/home/alice",
		env.VarPWD:      "/home/alice/src",
	})

	assert.Equal(t, "alice@box:~/src"+marker()+" ", s.Prompt())
}

func TestPromptHomeAbbreviation(t *testing.T) {
	cases := map[string]struct {
		pwd  string
		want string
	}{
		"home itself":     {pwd: "/home/alice", want: "~"},
		"below home":      {pwd: "/home/alice/docs", want: "~/docs"},
		"sibling of home": {pwd: "/home/alicedata", want: "/home/alicedata"},
		"outside home":    {pwd: "/etc", want: "/etc"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := promptShell(map[string]string{
				env.VarPrompt: `\w`,
				env.VarHome:   "/home/alice",
				env.VarPWD:    tc.pwd,
			})
			assert.Equal(t, tc.want, s.Prompt())
		})
	}
}

func TestPromptDefaultsWhenUnset(t *testing.T) {
	s := promptShell(map[string]string{
		env.VarUser:     "bob",
		env.VarHostname: "srv",
		env.VarPWD:      "/tmp",
	})

	assert.Equal(t, "bob@srv:/tmp"+marker()+" ", s.Prompt())
}

func TestPromptEscapes(t *testing.T) {
	s := promptShell(map[string]string{
		env.VarPrompt: `\e[31m\u\033[0m> `,
		env.VarUser:   "alice",
	})

	assert.Equal(t, "\033[31malice\033[0m> ", s.Prompt())
}
