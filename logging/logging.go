// Package logging sets up the process wide slog logger. Output can be
// held back in memory while a terminal UI takes over the screen and is
// flushed into the UI's log pane once it is drawn. An append-only log
// file receives every record regardless of buffering.
package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Options selects level, format and the optional log file.
type Options struct {
	Level  string
	Format string
	File   string
}

// teeWriter buffers or forwards records and always copies them to the
// log file when one is open.
type teeWriter struct {
	mu        sync.Mutex
	buffer    bytes.Buffer
	target    io.Writer
	file      *os.File
	buffering bool
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.buffering {
		w.buffer.Write(p)
	} else if w.target != nil {
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var writer *teeWriter

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a slog level,
// falling back to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default slog logger. With bufferOutput set nothing is
// written to the console until SetOutput is called; otherwise records go
// to stderr right away.
func Init(bufferOutput bool, opts Options) error {
	w := &teeWriter{buffering: bufferOutput}
	if !bufferOutput {
		w.target = os.Stderr
	}

	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w.file = file
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	if writer != nil {
		// Re-initialisation on config reload: release the previous file.
		writer.mu.Lock()
		if writer.file != nil {
			writer.file.Close()
		}
		writer.mu.Unlock()
	}
	writer = w
	slog.SetDefault(slog.New(handler))
	return nil
}

// SetOutput flushes the buffer to newTarget and starts live logging.
func SetOutput(newTarget io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.buffer.Len() > 0 {
		if _, err := newTarget.Write(writer.buffer.Bytes()); err != nil {
			return err
		}
		writer.buffer.Reset()
	}
	writer.target = newTarget
	writer.buffering = false
	return nil
}

// BufferOutput stops live logging and starts buffering.
func BufferOutput() {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	writer.target = nil
	writer.buffering = true
}

// Close flushes what is still buffered and closes the log file. Without a
// file and a live target the buffer goes to stderr so nothing is lost.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.buffer.Len() > 0 && writer.file == nil {
		if _, err := os.Stderr.Write(writer.buffer.Bytes()); err != nil {
			firstErr = err
		}
	}
	writer.buffer.Reset()

	if writer.file != nil {
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		writer.file = nil
	}
	return firstErr
}
