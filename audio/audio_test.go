package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func TestLibrary_ListsWavFiles(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "applause.wav")
	b := touch(t, dir, "Cheer.WAV")
	touch(t, dir, "notes.txt")
	touch(t, dir, "song.mp3")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755))

	lib := NewLibrary(dir)
	assert.ElementsMatch(t, []string{a, b}, lib.Files())

	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		f, ok := lib.Pick(rng)
		require.True(t, ok)
		seen[f] = true
	}
	assert.Len(t, seen, 2, "both files get picked")
}

func TestLibrary_MissingDirectory(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, lib.Files())
	_, ok := lib.Pick(rand.New(rand.NewPCG(1, 2)))
	assert.False(t, ok)
}

func TestLibrary_Watch(t *testing.T) {
	dir := t.TempDir()
	lib := NewLibrary(dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, lib.Watch(ctx))

	path := touch(t, dir, "new.wav")
	assert.Eventually(t, func() bool {
		return len(lib.Files()) == 1 && lib.Files()[0] == path
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		return len(lib.Files()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

type fakePlayer struct {
	mu     sync.Mutex
	played []string
	err    error
	block  chan struct{}
}

func (p *fakePlayer) Play(ctx context.Context, path string) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, path)
	return p.err
}

func TestJukebox_PlayRandomDoesNotBlock(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "hole.wav")
	player := &fakePlayer{block: make(chan struct{})}
	j := NewJukebox(NewLibrary(dir), player, nil)

	start := time.Now()
	got, ok := j.PlayRandom(context.Background())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, path, got)

	close(player.block)
	j.Wait()
	assert.Equal(t, []string{path}, player.played)
}

func TestJukebox_EmptyLibrary(t *testing.T) {
	player := &fakePlayer{}
	j := NewJukebox(NewLibrary(t.TempDir()), player, nil)
	_, ok := j.PlayRandom(context.Background())
	assert.False(t, ok)
	j.Wait()
	assert.Empty(t, player.played)
}

func TestJukebox_PlaybackErrorIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "broken.wav")
	j := NewJukebox(NewLibrary(dir), &fakePlayer{err: errors.New("no device")}, nil)
	_, ok := j.PlayRandom(context.Background())
	assert.True(t, ok)
	j.Wait()
}

func TestCommandPlayer(t *testing.T) {
	assert.NoError(t, NewCommandPlayer([]string{"true"}).Play(context.Background(), "x.wav"))
	assert.Error(t, NewCommandPlayer([]string{"false"}).Play(context.Background(), "x.wav"))
	assert.Error(t, NewCommandPlayer([]string{"/nonexistent/player"}).Play(context.Background(), "x.wav"))
	assert.Error(t, NewCommandPlayer(nil).Play(context.Background(), "x.wav"))
}

func TestCommandPlayer_KeepsArgs(t *testing.T) {
	p := NewCommandPlayer([]string{"true", "-q"})
	require.NoError(t, p.Play(context.Background(), "a.wav"))
	require.NoError(t, p.Play(context.Background(), "b.wav"))
	assert.Equal(t, []string{"true", "-q"}, p.args)
}

type wavFile struct {
	bits     uint16
	extra    bool
	dataSize uint32
	samples  []int16
}

func (f wavFile) bytes(t *testing.T) []byte {
	t.Helper()
	var data bytes.Buffer
	require.NoError(t, binary.Write(&data, binary.LittleEndian, f.samples))
	dataSize := uint32(data.Len())
	riffSize := uint32(4 + 8 + 16 + 8 + data.Len())
	if f.extra {
		riffSize += 12
	}
	if f.dataSize != 0 {
		dataSize, riffSize = f.dataSize, 0xFFFFFFFF
	}
	bits := f.bits
	if bits == 0 {
		bits = 16
	}

	var buf bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }
	buf.WriteString("RIFF")
	w(riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	// PCM, 2 channels, 22050 Hz
	w(uint16(1))
	w(uint16(2))
	w(uint32(22050))
	w(uint32(22050*2) * uint32(bits) / 8)
	w(2 * bits / 8)
	w(bits)
	if f.extra {
		buf.WriteString("abcd")
		w(uint32(4))
		buf.Write([]byte{1, 2, 3, 4})
	}
	buf.WriteString("data")
	w(dataSize)
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func readAllSamples(t *testing.T, r *WAVReader) []int16 {
	t.Helper()
	var out []int16
	chunk := make([]int16, 4)
	for range 1000 {
		n, err := r.Read(chunk)
		out = append(out, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
	}
	t.Fatal("reader never reached the end of the data")
	return nil
}

func TestWAVReader(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 42}
	for _, extra := range []bool{false, true} {
		r, err := NewWAVReader(bytes.NewReader(wavFile{extra: extra, samples: samples}.bytes(t)))
		require.NoError(t, err)
		assert.Equal(t, 22050, r.SampleRate)
		assert.Equal(t, 2, r.Channels)
		assert.Equal(t, samples, readAllSamples(t, r))
	}
}

func TestWAVReader_StreamingDataSize(t *testing.T) {
	// streamed files declare the largest possible data chunk
	samples := []int16{5, -5, 6, -6, 7, -7}
	raw := wavFile{dataSize: 0xFFFFFFFF, samples: samples}.bytes(t)

	r, err := NewWAVReader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, samples, readAllSamples(t, r), "only the samples present in the file are read")
}

func TestWAVReader_Rejects(t *testing.T) {
	_, err := NewWAVReader(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00AVI ")))
	assert.Error(t, err)

	_, err = NewWAVReader(bytes.NewReader([]byte("short")))
	assert.Error(t, err)

	_, err = NewWAVReader(bytes.NewReader(wavFile{bits: 8, samples: []int16{1}}.bytes(t)))
	assert.ErrorContains(t, err, "unsupported WAV encoding")
}
