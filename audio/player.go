package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os/exec"
	"strings"
	"sync"

	c "lautenbacher.net/puttcup/config"
)

// Player plays one file and returns when playback has ended.
type Player interface {
	Play(ctx context.Context, path string) error
}

// CommandPlayer runs an external program with the file appended to its
// arguments, e.g. aplay -q.
type CommandPlayer struct {
	args []string
}

func NewCommandPlayer(args []string) *CommandPlayer {
	return &CommandPlayer{args: args}
}

func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	if len(p.args) == 0 {
		return fmt.Errorf("no player command configured")
	}
	args := append(p.args[1:len(p.args):len(p.args)], path)
	out, err := exec.CommandContext(ctx, p.args[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", p.args[0], path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NewPlayer builds the player selected in cfg.
func NewPlayer(cfg c.AudioConfig) Player {
	if strings.EqualFold(cfg.Backend, "portaudio") {
		return NewPortaudioPlayer(cfg.Device)
	}
	return NewCommandPlayer(cfg.Command)
}

// Jukebox starts random sounds from a library without waiting for them.
type Jukebox struct {
	library *Library
	player  Player
	rngMu   sync.Mutex
	rng     *rand.Rand
	wg      sync.WaitGroup
}

func NewJukebox(library *Library, player Player, rng *rand.Rand) *Jukebox {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Jukebox{library: library, player: player, rng: rng}
}

// PlayRandom starts playback of a random file and returns immediately with
// the chosen path. It returns false when there is nothing to play.
// Playback errors are only logged.
func (j *Jukebox) PlayRandom(ctx context.Context) (string, bool) {
	j.rngMu.Lock()
	path, ok := j.library.Pick(j.rng)
	j.rngMu.Unlock()
	if !ok {
		slog.Info("No celebration sound available")
		return "", false
	}

	slog.Info("Playing", "file", path)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		if err := j.player.Play(ctx, path); err != nil && ctx.Err() == nil {
			slog.Warn("Playback failed", "file", path, "error", err)
		}
	}()
	return path, true
}

// Wait blocks until all started playbacks have ended.
func (j *Jukebox) Wait() {
	j.wg.Wait()
}
