// Package cmd holds the CLI entry point.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mar.sh/marsh/core"
	"mar.sh/marsh/core/config"
)

var (
	cfgPath string
	rcFile  string
	noRC    bool
	quiet   bool
	command string

	exitStatus int
)

// rootCmd runs the shell; there are no subcommands.
var rootCmd = &cobra.Command{
	Use:   "marsh",
	Short: "An interactive command shell",
	Long: `marsh is an interactive command shell with pipelines, job control,
persistent history and tab completion.`,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		settings, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		sh, err := core.NewShell(settings, core.Options{
			RCFile: rcFile,
			NoRC:   noRC,
			Quiet:  quiet,
		})
		if err != nil {
			return err
		}
		defer sh.Close()

		if command != "" {
			exitStatus = sh.RunLine(command)
			return nil
		}
		exitStatus = sh.Run()
		return nil
	},
}

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marsh: %v\n", err)
		return 1
	}
	return exitStatus
}

func defaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "marsh")
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgPath, "config", defaultConfigDir(), "config directory")
	flags.StringVar(&rcFile, "rcfile", "", "startup script overriding the configured one")
	flags.BoolVar(&noRC, "norc", false, "skip the startup script")
	flags.StringVarP(&command, "command", "c", "", "run a single command and exit")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress startup warnings")
}
