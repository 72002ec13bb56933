package audio

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/whispersubs/whispersubs/internal/errors"
)

// uploadBitDepth is the PCM width used for engine uploads
const uploadBitDepth = 16

// seekableBuffer is an in-memory io.WriteSeeker. The WAV encoder seeks back
// to patch chunk sizes on Close, which bytes.Buffer cannot do.
type seekableBuffer struct {
	buf []byte
	pos int64
}

func (s *seekableBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		if end > int64(cap(s.buf)) {
			grown := make([]byte, end, max(end, 2*int64(cap(s.buf))))
			copy(grown, s.buf)
			s.buf = grown
		} else {
			s.buf = s.buf[:end]
		}
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position %d", abs)
	}
	s.pos = abs
	return abs, nil
}

func (s *seekableBuffer) Bytes() []byte {
	return s.buf
}

// EncodeWAV renders mono float32 samples as a 16-bit PCM WAV file in memory.
// Samples outside [-1, 1] are clipped.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, errors.Newf("invalid sample rate %d", sampleRate).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "encode_wav").
			Build()
	}

	out := &seekableBuffer{buf: make([]byte, 0, 44+len(samples)*2)}
	enc := wav.NewEncoder(out, sampleRate, uploadBitDepth, 1, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = floatToInt16(s)
	}

	buf := &audio.IntBuffer{
		Data:           ints,
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		SourceBitDepth: uploadBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, errors.New(fmt.Errorf("failed to write WAV samples: %w", err)).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "encode_wav").
			Build()
	}
	if err := enc.Close(); err != nil {
		return nil, errors.New(fmt.Errorf("failed to finalize WAV: %w", err)).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "encode_wav").
			Build()
	}
	return out.Bytes(), nil
}

func floatToInt16(s float32) int {
	switch {
	case s >= 1:
		return math.MaxInt16
	case s <= -1:
		return math.MinInt16
	default:
		return int(s * math.MaxInt16)
	}
}

// WAVReader decodes integer PCM WAV into interleaved float32 samples
type WAVReader struct {
	dec     *wav.Decoder
	format  Format
	divisor float32
	ints    *audio.IntBuffer
}

// OpenWAV validates the header of r and prepares it for reading
func OpenWAV(r io.ReadSeeker) (*WAVReader, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("audio").
			Category(errors.CategoryFileIO).
			Context("operation", "open_wav").
			Build()
	}

	divisor, err := getAudioDivisor(int(dec.BitDepth))
	if err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "open_wav").
			Build()
	}

	f := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	if err := f.Validate(); err != nil {
		return nil, errors.New(err).
			Component("audio").
			Category(errors.CategoryAudio).
			Context("operation", "open_wav").
			Build()
	}

	return &WAVReader{dec: dec, format: f, divisor: divisor}, nil
}

// Format returns the file's sample rate and channel count
func (w *WAVReader) Format() Format {
	return w.format
}

// Read fills dst with up to len(dst) interleaved samples scaled to [-1, 1)
// and returns io.EOF once the data chunk is exhausted.
func (w *WAVReader) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if w.ints == nil || len(w.ints.Data) < len(dst) {
		w.ints = &audio.IntBuffer{
			Data:   make([]int, len(dst)),
			Format: &audio.Format{SampleRate: w.format.SampleRate, NumChannels: w.format.Channels},
		}
	}
	w.ints.Data = w.ints.Data[:len(dst)]

	n, err := w.dec.PCMBuffer(w.ints)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, errors.New(fmt.Errorf("failed to decode WAV samples: %w", err)).
			Component("audio").
			Category(errors.CategoryFileIO).
			Context("operation", "read_wav").
			Build()
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, s := range w.ints.Data[:n] {
		dst[i] = float32(s) / w.divisor
	}
	return n, nil
}

// getAudioDivisor returns the full-scale value for an integer bit depth
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128.0, nil
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}
