package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	file  *os.File
	mu    sync.Mutex
	out   io.Writer = os.Stderr
	level           = log.InfoLevel
)

// Path returns ~/.config/go-perform/debug.log
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-perform", "debug.log"), nil
}

// Enable sends the output of every logger created afterwards to a file
// instead of the terminal (the monitor owns the screen). An empty path
// means Path().
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		return nil
	}

	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	out = f
	return nil
}

// Disable closes the debug log file and goes back to stderr
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	out = os.Stderr
}

// SetLevel sets the level of loggers created afterwards ("debug", "info", ...)
func SetLevel(name string) error {
	lvl, err := log.ParseLevel(name)
	if err != nil {
		return err
	}
	mu.Lock()
	level = lvl
	mu.Unlock()
	return nil
}

// New returns a logger with the given prefix
func New(prefix string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()

	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly + ".000",
	})
}

// Discard returns a logger that drops everything (tests)
func Discard() *log.Logger {
	return log.New(io.Discard)
}
