package peripheral

import (
	"io"
	"log/slog"
	"sync"
)

// Link is the best effort sending side. A Link without a port, or one
// whose port failed once, silently drops everything sent to it.
type Link struct {
	mu        sync.Mutex
	port      io.WriteCloser
	name      string
	connected bool
	dropped   int
}

// NewLink wraps port. A nil port gives a disconnected link.
func NewLink(name string, port io.WriteCloser) *Link {
	return &Link{
		name:      name,
		port:      port,
		connected: port != nil,
	}
}

// Disconnected returns a link that drops every command.
func Disconnected() *Link {
	return NewLink("", nil)
}

// Send writes cmd to the co-processor. It never fails: a write error is
// logged once and the link stays disconnected for the rest of the run.
// The return value tells whether the command went out.
func (l *Link) Send(cmd Command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		l.dropped++
		return false
	}
	if _, err := l.port.Write(cmd.Line()); err != nil {
		slog.Warn("Peripheral write failed, disconnecting", "port", l.name, "command", cmd, "error", err)
		l.connected = false
		l.dropped++
		return false
	}
	slog.Debug("Sent to peripheral", "port", l.name, "command", cmd)
	return true
}

func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Dropped is the number of commands that were not delivered.
func (l *Link) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close releases the port. The link is disconnected afterwards.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	if l.port == nil {
		return nil
	}
	port := l.port
	l.port = nil
	return port.Close()
}
