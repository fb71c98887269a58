// ABOUTME: PCM readers for offline capture from files or generated tones
// ABOUTME: Decodes MP3 and FLAC into interleaved float samples
package capture

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
)

// Reader provides interleaved float samples
type Reader interface {
	// Read fills samples and returns how many were written, or io.EOF when done
	Read(samples []float32) (int, error)
	SampleRate() int
	Channels() int
	Name() string
	Close() error
}

// OpenReader opens an audio file by extension
func OpenReader(path string) (Reader, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return NewMP3Reader(path)
	case ".flac":
		return NewFLACReader(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

func title(path string) string {
	filename := filepath.Base(path)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// MP3Reader reads from an MP3 file
type MP3Reader struct {
	file    *os.File
	decoder *mp3.Decoder
	name    string
	buf     []byte
}

// NewMP3Reader creates a new MP3 reader
func NewMP3Reader(path string) (*MP3Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	name := title(path)
	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", name, decoder.SampleRate())

	return &MP3Reader{file: f, decoder: decoder, name: name}, nil
}

func (r *MP3Reader) Read(samples []float32) (int, error) {
	// The decoder always produces 16-bit stereo
	if need := len(samples) * 2; cap(r.buf) < need {
		r.buf = make([]byte, need)
	}
	buf := r.buf[:len(samples)*2]

	n, err := io.ReadFull(r.decoder, buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	got := audio.DecodeInto(samples, buf[:n-n%2], audio.FormatS16)
	if err == io.EOF && got > 0 {
		err = nil
	}
	return got, err
}

func (r *MP3Reader) SampleRate() int { return r.decoder.SampleRate() }
func (r *MP3Reader) Channels() int   { return 2 }
func (r *MP3Reader) Name() string    { return r.name }
func (r *MP3Reader) Close() error    { return r.file.Close() }

// FLACReader reads from a FLAC file
type FLACReader struct {
	file   *os.File
	stream *flac.Stream
	name   string
	scale  float32

	// decoded samples not yet returned
	pending []float32
}

// NewFLACReader creates a new FLAC reader
func NewFLACReader(path string) (*FLACReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	name := title(path)
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		name, info.SampleRate, info.NChannels, info.BitsPerSample)

	return &FLACReader{
		file:   f,
		stream: stream,
		name:   name,
		scale:  float32(1 / math.Ldexp(1, int(info.BitsPerSample)-1)),
	}, nil
}

func (r *FLACReader) Read(samples []float32) (int, error) {
	channels := r.Channels()
	read := 0

	for read < len(samples) {
		if len(r.pending) > 0 {
			n := copy(samples[read:], r.pending)
			r.pending = r.pending[n:]
			read += n
			continue
		}

		frame, err := r.stream.ParseNext()
		if err == io.EOF {
			if read == 0 {
				return 0, io.EOF
			}
			return read, nil
		}
		if err != nil {
			return read, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		blockSize := int(frame.BlockSize)
		need := blockSize * channels
		if cap(r.pending) < need {
			r.pending = make([]float32, need)
		}
		r.pending = r.pending[:need]
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels; ch++ {
				r.pending[i*channels+ch] = float32(frame.Subframes[ch].Samples[i]) * r.scale
			}
		}
	}

	return read, nil
}

func (r *FLACReader) SampleRate() int { return int(r.stream.Info.SampleRate) }
func (r *FLACReader) Channels() int   { return int(r.stream.Info.NChannels) }
func (r *FLACReader) Name() string    { return r.name }
func (r *FLACReader) Close() error    { return r.file.Close() }

// ToneReader generates a sine tone on every channel
type ToneReader struct {
	sampleRate  int
	channels    int
	frequency   float64
	amplitude   float64
	sampleIndex uint64
	limit       uint64 // frames, 0 means endless
}

// NewToneReader creates a tone generator. frames limits the output, 0 for endless.
func NewToneReader(sampleRate, channels int, frequency, amplitude float64, frames int) *ToneReader {
	return &ToneReader{
		sampleRate: sampleRate,
		channels:   channels,
		frequency:  frequency,
		amplitude:  amplitude,
		limit:      uint64(frames),
	}
}

func (r *ToneReader) Read(samples []float32) (int, error) {
	frames := len(samples) / r.channels
	if r.limit > 0 {
		left := r.limit - r.sampleIndex
		if left == 0 {
			return 0, io.EOF
		}
		if uint64(frames) > left {
			frames = int(left)
		}
	}

	for i := 0; i < frames; i++ {
		t := float64(r.sampleIndex+uint64(i)) / float64(r.sampleRate)
		v := float32(r.amplitude * math.Sin(2*math.Pi*r.frequency*t))
		for ch := 0; ch < r.channels; ch++ {
			samples[i*r.channels+ch] = v
		}
	}
	r.sampleIndex += uint64(frames)

	return frames * r.channels, nil
}

func (r *ToneReader) SampleRate() int { return r.sampleRate }
func (r *ToneReader) Channels() int   { return r.channels }
func (r *ToneReader) Name() string    { return fmt.Sprintf("Test Tone %.0fHz", r.frequency) }
func (r *ToneReader) Close() error    { return nil }
