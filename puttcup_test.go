package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "lautenbacher.net/puttcup/config"
	"lautenbacher.net/puttcup/effects"
)

type recordingStrip struct {
	mu     sync.Mutex
	size   int
	frames [][]effects.Led
}

func (s *recordingStrip) Len() int { return s.size }

func (s *recordingStrip) Show(leds []effects.Led) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]effects.Led(nil), leds...))
	return nil
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	names := []string{}
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"run", "probe", "peripheral", "ports"})

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	assert.NotNil(t, run.Flags().Lookup("http"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("real"))
}

func TestReadConfigAppliesFlags(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(file, []byte("Detection:\n  ThresholdCM: 7\n"), 0o644))

	flagConfig, flagReal = file, true
	t.Cleanup(func() { flagConfig, flagReal = c.CONFILE, false })

	conf, err := readConfig()
	require.NoError(t, err)
	assert.True(t, conf.RealHW)
	assert.Equal(t, file, conf.Configfile)
	assert.Equal(t, 7.0, conf.Detection.ThresholdCM)
	assert.Equal(t, c.Default().Detection.RequiredHits, conf.Detection.RequiredHits)
}

func TestLogOptions(t *testing.T) {
	opts := logOptions(c.LogTarget{Level: "WARN", Format: "json", File: "x.log"})
	assert.Equal(t, "WARN", opts.Level)
	assert.Equal(t, "json", opts.Format)
	assert.Equal(t, "x.log", opts.File)
}

func TestListenRendersCommands(t *testing.T) {
	conf := c.Default()
	conf.Celebration.Duration = 40 * time.Millisecond
	conf.Celebration.FlashInterval = 5 * time.Millisecond
	strip := &recordingStrip{size: 10}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, listen(ctx, conf, strip, strings.NewReader("celebrate\nbogus\noff\n")))

	strip.mu.Lock()
	defer strip.mu.Unlock()
	require.NotEmpty(t, strip.frames)
	for _, led := range strip.frames[len(strip.frames)-1] {
		assert.True(t, led.IsEmpty(), "strip is dark after off")
	}
}
