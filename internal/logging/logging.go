// Package logging builds the zerolog loggers handed to the trainer,
// inference engine and HTTP server.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the log encoding.
type Format string

const (
	JSON    Format = "json"
	Console Format = "console"
)

// Config is the log section of the configuration file.
type Config struct {
	Level  string `yaml:"level" json:"level"`
	Format Format `yaml:"format" json:"format"`
}

// DefaultConfig logs at info level as console text.
func DefaultConfig() Config {
	return Config{Level: "info", Format: Console}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case JSON, Console, "":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

// ParseLevel accepts zerolog level names. The empty string is info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// New returns a timestamped logger writing to w. A nil writer means
// stderr.
func New(level string, format Format, w io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if w == nil {
		w = os.Stderr
	}
	switch format {
	case JSON:
	case Console, "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// FromConfig is New with the configured level and format.
func FromConfig(c Config, w io.Writer) (zerolog.Logger, error) {
	return New(c.Level, c.Format, w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
