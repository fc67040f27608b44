// Package logutils builds the process-wide zerolog logger.
package logutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Output formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New returns a new logger writing to the specified file, appending to it
// when it exists. If file is empty, logs are written to stdout.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
// The format parameter is json (default) or console.
func New(level, format, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var writer io.Writer = os.Stdout
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}

		osFile, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = osFile.Close() }
		writer = osFile
	}

	switch format {
	case "", FormatJSON:
	case FormatConsole:
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05", NoColor: file != ""}
	default:
		closer()
		return zerolog.Logger{}, func() {}, fmt.Errorf("unknown log format %q", format)
	}

	l := zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}
