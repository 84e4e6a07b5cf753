// ABOUTME: Log destination selection
// ABOUTME: Stdout plus optional log file, or the file alone while the TUI owns the terminal
package logging

import (
	"fmt"
	"io"
	"os"
)

// OpenOutput returns the writer logs should go to.
// With tui set, logs go only to path (or are discarded when path is empty)
// so they do not corrupt the display. Otherwise they go to stdout and, when
// path is set, to the file as well. The returned close func is never nil.
func OpenOutput(path string, tui bool) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	if path == "" {
		if tui {
			return io.Discard, noop, nil
		}
		return os.Stdout, noop, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, noop, fmt.Errorf("error opening log file: %w", err)
	}

	if tui {
		// TUI mode: log only to file
		return f, f.Close, nil
	}
	return io.MultiWriter(os.Stdout, f), f.Close, nil
}
