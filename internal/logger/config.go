package logger

import (
	"errors"
	"fmt"
	"strings"
)

// Config defines the logger configuration. Fields are filled from the
// environment by the config package under the LOG_ prefix.
type Config struct {
	Level            string     `env:"LEVEL" envDefault:"info"`      // debug, info, warn, error
	Format           string     `env:"FORMAT" envDefault:"console"`  // json, console
	Output           string     `env:"OUTPUT" envDefault:"console"`  // console, file, both
	EnableStacktrace bool       `env:"STACKTRACE" envDefault:"false"` // stacktrace for error level
	File             FileConfig `envPrefix:"FILE_"`
}

// FileConfig defines file output configuration
type FileConfig struct {
	Filename   string `env:"NAME" envDefault:"logs/compliance_checker.log"`
	MaxSize    int    `env:"MAX_SIZE" envDefault:"100"`   // MB
	MaxAge     int    `env:"MAX_AGE" envDefault:"30"`     // days
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"10"` // files
	Compress   bool   `env:"COMPRESS" envDefault:"true"`
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
		Output: "console",
		File: FileConfig{
			Filename:   "logs/compliance_checker.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

var validLevels = []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}

// Validate validates the logger configuration
func (c *Config) Validate() error {
	levelValid := false
	for _, level := range validLevels {
		if strings.ToLower(c.Level) == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Level, strings.Join(validLevels, ", "))
	}

	if c.Format != "json" && c.Format != "console" {
		return errors.New("invalid log format, must be 'json' or 'console'")
	}

	if c.Output != "console" && c.Output != "file" && c.Output != "both" {
		return errors.New("invalid log output, must be 'console', 'file' or 'both'")
	}

	if c.Output == "file" || c.Output == "both" {
		if c.File.Filename == "" {
			return errors.New("log file name is required when output is 'file' or 'both'")
		}
		if c.File.MaxSize <= 0 {
			return errors.New("log file max size must be greater than 0")
		}
		if c.File.MaxAge <= 0 {
			return errors.New("log file max age must be greater than 0")
		}
		if c.File.MaxBackups < 0 {
			return errors.New("log file max backups must be greater than or equal to 0")
		}
	}

	return nil
}
