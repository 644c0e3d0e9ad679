package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVReader streams interleaved 16 bit PCM samples out of a WAV file. The
// data is decoded in chunks the size of the caller's buffer, the sizes
// declared in the file are never used to allocate memory.
type WAVReader struct {
	dec        *wav.Decoder
	buf        *goaudio.IntBuffer
	SampleRate int
	Channels   int
}

// NewWAVReader checks the header of r and positions it at the sample data.
// Only uncompressed 16 bit PCM is accepted.
func NewWAVReader(r io.ReadSeeker) (*WAVReader, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("not a readable WAV file: %w", err)
	}
	if dec.WavAudioFormat != 1 || dec.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", dec.WavAudioFormat, dec.BitDepth)
	}
	if dec.NumChans < 1 || dec.SampleRate == 0 {
		return nil, errors.New("WAV file without channels or sample rate")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("no sample data: %w", err)
	}
	return &WAVReader{
		dec:        dec,
		buf:        &goaudio.IntBuffer{},
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// Read decodes up to len(samples) samples and returns how many it wrote.
// It returns io.EOF once the data is exhausted; a truncated file simply
// ends early.
func (w *WAVReader) Read(samples []int16) (int, error) {
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]

	n, err := w.dec.PCMBuffer(w.buf)
	for i := range n {
		samples[i] = int16(w.buf.Data[i])
	}
	switch {
	case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF):
		return n, fmt.Errorf("reading samples: %w", err)
	case n == 0:
		return 0, io.EOF
	}
	return n, nil
}
