package whisper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// uploadName is the file name sent with each chunk. Servers use its
// extension to pick a decoder.
const uploadName = "chunk.wav"

// OpenAILoader connects to an OpenAI-compatible audio transcription API.
// Local whisper servers exposing /v1/audio/transcriptions work as well.
type OpenAILoader struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // per request, 0 for no limit beyond ctx
	SampleRate int           // rate of the samples passed to Process
	HTTPClient *http.Client
}

// Load validates the configuration and builds the client. modelPath is the
// remote model name, for example whisper-1.
func (l *OpenAILoader) Load(ctx context.Context, modelPath string, dev Device) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(modelPath) == "" {
		return nil, loadError(fmt.Errorf("model name is empty"), modelPath)
	}
	if l.SampleRate <= 0 {
		return nil, loadError(fmt.Errorf("invalid engine sample rate %d", l.SampleRate), modelPath)
	}

	cfg := openai.DefaultConfig(l.APIKey)
	if l.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(l.BaseURL, "/")
	}
	if l.HTTPClient != nil {
		cfg.HTTPClient = l.HTTPClient
	}
	if l.APIKey == "" && cfg.BaseURL == openai.DefaultConfig("").BaseURL {
		return nil, loadError(fmt.Errorf("api key is required for %s", cfg.BaseURL), modelPath)
	}

	log := GetLogger().With(logger.String("model", modelPath), logger.String("base_url", cfg.BaseURL))
	if dev.UseGPU {
		log.Debug("device preference is decided by the server")
	}
	log.Info("openai engine ready", logger.Duration("timeout", l.Timeout))

	return &openAIModel{
		client:     openai.NewClientWithConfig(cfg),
		model:      modelPath,
		timeout:    l.Timeout,
		sampleRate: l.SampleRate,
		log:        log,
	}, nil
}

func loadError(err error, model string) error {
	return errors.New(err).
		Component("whisper").
		Category(errors.CategoryModelLoad).
		Context("engine", conf.EngineOpenAI).
		Context("model", model).
		Build()
}

type openAIModel struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	sampleRate int
	log        logger.Logger

	segments []Segment
	closed   bool
}

func (m *openAIModel) Process(ctx context.Context, samples []float32, p Params) error {
	if m.closed {
		return ErrModelClosed
	}
	m.segments = m.segments[:0]
	if len(samples) == 0 {
		return nil
	}

	wav, err := audio.EncodeWAV(samples, m.sampleRate)
	if err != nil {
		return err
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	req := openai.AudioRequest{
		Model:    m.model,
		FilePath: uploadName,
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	start := time.Now()
	var resp openai.AudioResponse
	if p.Translate {
		resp, err = m.client.CreateTranslation(ctx, req)
	} else {
		if !p.AutoDetect() {
			req.Language = p.Language
		}
		resp, err = m.client.CreateTranscription(ctx, req)
	}
	if err != nil {
		return m.inferenceError(ctx, err, len(samples))
	}

	for i := range resp.Segments {
		s := &resp.Segments[i]
		m.segments = append(m.segments, Segment{
			Start: secondsToDuration(s.Start),
			End:   secondsToDuration(s.End),
			Text:  s.Text,
		})
	}
	// servers that ignore verbose_json still return the text
	if len(m.segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		m.segments = append(m.segments, Segment{
			End:  secondsToDuration(float64(len(samples)) / float64(m.sampleRate)),
			Text: resp.Text,
		})
	}

	m.log.Debug("transcription received",
		logger.Int("segments", len(m.segments)),
		logger.String("language", resp.Language),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *openAIModel) inferenceError(ctx context.Context, err error, samples int) error {
	category := errors.CategoryModelInference
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		category = errors.CategoryTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		category = errors.CategoryCancellation
	}

	b := errors.New(err).
		Component("whisper").
		Category(category).
		Context("operation", "process_chunk").
		Context("model", m.model).
		Context("samples", samples)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		b = b.Context("status_code", apiErr.HTTPStatusCode)
	}
	return b.Build()
}

func (m *openAIModel) SegmentCount() int {
	return len(m.segments)
}

func (m *openAIModel) Segment(i int) Segment {
	if i < 0 || i >= len(m.segments) {
		return Segment{}
	}
	return m.segments[i]
}

func (m *openAIModel) Close() error {
	m.closed = true
	m.segments = nil
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
