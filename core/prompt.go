package core

import (
	"os"
	"strings"

	"mar.sh/marsh/core/env"
)

const (
	DefaultPrompt      = `\u@\h:\w\$ `
	DefaultColorPrompt = `\033[01;32m\u@\h\033[00m:\033[01;34m\w\033[00m\$ `
)

var promptEscapes = strings.NewReplacer(
	`\033`, "\033",
	`\e`, "\033",
	`\n`, "\n",
	`\t`, "\t",
	`\\`, `\`,
)

// Prompt renders PS1. Supported escapes: \u user, \h hostname, \w working
// directory with the home prefix abbreviated to ~, and \$ which renders as
// # for root.
func (s *Shell) Prompt() string {
	prompt := s.Env.Get(env.VarPrompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}

	prompt = strings.ReplaceAll(prompt, `\u`, s.Env.Get(env.VarUser))
	prompt = strings.ReplaceAll(prompt, `\h`, s.Env.Get(env.VarHostname))

	pwd := s.Env.Get(env.VarPWD)
	if home := s.Env.Home(); home != "" && home != "/" {
		if pwd == home {
			pwd = "~"
		} else if strings.HasPrefix(pwd, home+"/") {
			pwd = "~" + strings.TrimPrefix(pwd, home)
		}
	}
	prompt = strings.ReplaceAll(prompt, `\w`, pwd)

	if os.Getuid() == 0 {
		prompt = strings.ReplaceAll(prompt, `\$`, "#")
	} else {
		prompt = strings.ReplaceAll(prompt, `\$`, "$")
	}

	return promptEscapes.Replace(prompt)
}
