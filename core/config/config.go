// Package config loads the shell's settings file and evaluates startup
// scripts against the environment store.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

// ConfigName is the settings file looked up inside the config directory.
const ConfigName = "config.yaml"

// Settings is the shell's YAML-backed configuration.
type Settings struct {
	// Prompt is the PS1 value used when the environment doesn't set one.
	Prompt string `json:"prompt"`
	// RCFile is the startup script sourced before the first prompt.
	RCFile string `json:"rc_file"`

	History HistorySettings `json:"history"`
}

// HistorySettings configures the persistent history store.
type HistorySettings struct {
	File       string `json:"file"`
	MaxEntries int    `json:"max_entries" validate:"gte=0"`
}

// Default returns the settings used when no config file exists.
func Default() *Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Settings{
		Prompt: `\u@\h:\w\$ `,
		RCFile: filepath.Join(home, ".marshrc"),
		History: HistorySettings{
			File:       filepath.Join(home, ".marsh_history.db"),
			MaxEntries: 1000,
		},
	}
}

// Load reads settings from the given directory, falling back to defaults
// for a missing file. Fields absent from the file keep their defaults.
func Load(path string) (*Settings, error) {
	if filepath.Base(path) == ConfigName {
		path = filepath.Dir(path)
	}

	out := Default()
	contents, err := os.ReadFile(filepath.Join(path, ConfigName))
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.UnmarshalStrict(contents, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate the settings for basic semantic errors.
func (s *Settings) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(s)
}
