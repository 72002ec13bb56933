package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// DefaultBlockFrames is the block size used when feeding files
const DefaultBlockFrames = 1024

// WAVFile plays a PCM WAV file into a Sink
type WAVFile struct {
	path   string
	file   *os.File
	reader *audio.WAVReader
	log    logger.Logger
}

// PlayOptions controls file playback
type PlayOptions struct {
	BlockFrames int  // frames per block, 0 for DefaultBlockFrames
	Fast        bool // feed without real-time pacing
}

// OpenWAVFile opens path and reads its header
func OpenWAVFile(path string) (*WAVFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open audio file: %w", err)).
			Component("source").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	r, err := audio.OpenWAV(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &WAVFile{
		path:   path,
		file:   f,
		reader: r,
		log:    GetLogger().With(logger.String("source", "file"), logger.String("path", path)),
	}, nil
}

// Format returns the file's sample rate and channel count
func (w *WAVFile) Format() audio.Format {
	return w.reader.Format()
}

// Play feeds the file block by block until EOF or ctx is done. In paced
// mode each block is delivered when its audio would have been captured,
// so the pipeline sees the same timing as live input.
func (w *WAVFile) Play(ctx context.Context, sink Sink, opts PlayOptions) error {
	frames := opts.BlockFrames
	if frames <= 0 {
		frames = DefaultBlockFrames
	}
	format := w.Format()
	block := make([]float32, frames*format.Channels)

	start := time.Now()
	var fed time.Duration
	var total int

	w.log.Info("playing audio file",
		logger.String("format", format.String()),
		logger.Bool("fast", opts.Fast))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := w.reader.Read(block)
		if n > 0 {
			// partial frames only occur on truncated files
			n -= n % format.Channels
			sink.Feed(block[:n])
			total += n
			fed += format.Duration(n)
		}
		if err == io.EOF {
			w.log.Info("audio file finished", logger.Duration("audio", format.Duration(total)))
			return nil
		}
		if err != nil {
			return err
		}

		if opts.Fast {
			continue
		}
		if wait := time.Until(start.Add(fed)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// Close releases the file
func (w *WAVFile) Close() error {
	return w.file.Close()
}
