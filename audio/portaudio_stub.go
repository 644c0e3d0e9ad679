//go:build !cgo

package audio

import (
	"context"
	"errors"
	"log/slog"
)

// PortaudioPlayer is a stub for builds without CGO.
type PortaudioPlayer struct{}

func NewPortaudioPlayer(device string) *PortaudioPlayer {
	slog.Warn("Portaudio playback is disabled in this build (requires CGO).")
	return &PortaudioPlayer{}
}

func TerminatePortaudio() {}

func (p *PortaudioPlayer) Play(ctx context.Context, path string) error {
	return errors.New("portaudio playback not available in this build")
}
