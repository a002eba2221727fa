package main

import (
	"errors"

	"github.com/framepoint/framepoint/transcribe"
)

type Config struct {
	InputPath   string
	Collection  string
	WindowChars int
	EnvFile     string
	DryRun      bool
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return errors.New("missing -in")
	}
	if c.WindowChars <= 0 {
		return errors.New("window chars must be > 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		WindowChars: transcribe.DefaultWindowChars,
		EnvFile:     ".env",
	}
}
