//go:build cgo

package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

var (
	paMutex       sync.Mutex
	paInitialized bool
)

// PortaudioPlayer decodes WAV files itself and streams them to an output
// device.
type PortaudioPlayer struct {
	device string
	// one sound at a time on the device
	playing sync.Mutex
}

func NewPortaudioPlayer(device string) *PortaudioPlayer {
	return &PortaudioPlayer{device: strings.ToLower(device)}
}

func initPortaudio() error {
	paMutex.Lock()
	defer paMutex.Unlock()
	if paInitialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	slog.Info("PortAudio initialized.")
	paInitialized = true
	return nil
}

// TerminatePortaudio releases the audio library if it was used.
func TerminatePortaudio() {
	paMutex.Lock()
	defer paMutex.Unlock()
	if !paInitialized {
		return
	}
	if err := portaudio.Terminate(); err != nil {
		slog.Error("Failed to terminate portaudio", "error", err)
		return
	}
	slog.Info("PortAudio terminated.")
	paInitialized = false
}

func (p *PortaudioPlayer) findDevice() (*portaudio.DeviceInfo, error) {
	if p.device == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("could not list audio devices: %w", err)
	}
	for _, device := range devices {
		if device.MaxOutputChannels > 0 && strings.Contains(strings.ToLower(device.Name), p.device) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("no audio output device matching %q", p.device)
}

func (p *PortaudioPlayer) Play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	pcm, err := NewWAVReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := initPortaudio(); err != nil {
		return err
	}
	device, err := p.findDevice()
	if err != nil {
		return err
	}

	p.playing.Lock()
	defer p.playing.Unlock()

	buffer := make([]int16, framesPerBuffer*pcm.Channels)
	params := portaudio.LowLatencyParameters(nil, device)
	params.Output.Channels = pcm.Channels
	params.SampleRate = float64(pcm.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return fmt.Errorf("failed to open stream on %s: %w", device.Name, err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	defer stream.Stop()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := pcm.Read(buffer)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		clear(buffer[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("writing to stream: %w", err)
		}
	}
}
