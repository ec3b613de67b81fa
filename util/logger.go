package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// NewLogger builds the process logger. When dir is non-empty the output is
// mirrored to <dir>/<name>.log so per-client logs survive the run.
func NewLogger(name, level, dir string) (hclog.Logger, func() error, error) {
	var out io.Writer = os.Stdout
	closer := func() error { return nil }

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("util: create log dir: %w", err)
		}
		path := filepath.Join(dir, name+".log")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("util: open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: out,
	})
	return logger, closer, nil
}
