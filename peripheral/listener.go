package peripheral

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Renderer is the part of the effects engine the listener drives.
type Renderer interface {
	RenderIdle(tick int) error
	RunCelebration(ctx context.Context, duration time.Duration) error
	Clear() error
}

// Listener is the co-processor side of the link: it reads commands line by
// line and mirrors them onto its own strip. While idle it keeps the
// shimmer running; a celebration runs to completion before the next
// command is looked at.
type Listener struct {
	renderer     Renderer
	idleInterval time.Duration
	duration     time.Duration
}

func NewListener(renderer Renderer, idleInterval, celebration time.Duration) *Listener {
	return &Listener{
		renderer:     renderer,
		idleInterval: idleInterval,
		duration:     celebration,
	}
}

// Run serves commands from r until ctx is cancelled or r is exhausted. The
// strip is cleared before Run returns.
func (l *Listener) Run(ctx context.Context, r io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	defer func() {
		if err := l.renderer.Clear(); err != nil {
			slog.Warn("Failed to clear strip", "error", err)
		}
	}()

	slog.Info("Peripheral listener ready")
	ticker := time.NewTicker(l.idleInterval)
	defer ticker.Stop()
	mode := CmdIdle
	tick := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if mode != CmdIdle {
				continue
			}
			if err := l.renderer.RenderIdle(tick); err != nil {
				slog.Warn("Idle frame failed", "error", err)
			}
			tick++
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				slog.Warn("Ignoring line from controller", "error", err)
				continue
			}
			slog.Debug("Received", "command", cmd)
			mode = l.apply(ctx, cmd)
		}
	}
}

// apply executes cmd and returns the mode to continue in.
func (l *Listener) apply(ctx context.Context, cmd Command) Command {
	switch cmd {
	case CmdCelebrate:
		err := l.renderer.RunCelebration(ctx, l.duration)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Celebration ended early", "error", err)
		}
		return CmdIdle
	case CmdOff:
		if err := l.renderer.Clear(); err != nil {
			slog.Warn("Failed to clear strip", "error", err)
		}
		return CmdOff
	default:
		return CmdIdle
	}
}
