package mqtt

import (
	"time"

	"github.com/whispersubs/whispersubs/internal/pipeline"
)

// SubtitleDTO is the JSON payload published for each subtitle update.
// Field names are part of the topic contract.
type SubtitleDTO struct {
	Text        string  `json:"text"`
	Instance    string  `json:"instance"`
	PipelineID  string  `json:"pipelineId"`
	Language    string  `json:"language,omitempty"`
	Translated  bool    `json:"translated"`
	CapturedAt  string  `json:"capturedAt"`  // RFC 3339 with milliseconds
	PublishedAt string  `json:"publishedAt"` // RFC 3339 with milliseconds
	AudioSec    float64 `json:"audioSeconds"`
	LatencySec  float64 `json:"latencySeconds"`
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NewSubtitleDTO converts a pipeline result
func NewSubtitleDTO(r *pipeline.Result) SubtitleDTO {
	return SubtitleDTO{
		Text:        r.Text,
		Instance:    r.Name,
		PipelineID:  r.PipelineID,
		Language:    r.Language,
		Translated:  r.Translated,
		CapturedAt:  formatTime(r.CapturedAt),
		PublishedAt: formatTime(r.PublishedAt),
		AudioSec:    r.Audio.Seconds(),
		LatencySec:  r.Latency.Seconds(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
