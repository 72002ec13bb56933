package subtitle

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/whispersubs/whispersubs/internal/logger"
)

// FrameInterval is the console polling period, one frame at 25 fps
const FrameInterval = 40 * time.Millisecond

// ConsoleRenderer prints a line each time a new cue appears
type ConsoleRenderer struct {
	overlay  *Overlay
	out      io.Writer
	interval time.Duration
	now      func() time.Time
}

// NewConsoleRenderer creates a renderer writing to out
func NewConsoleRenderer(o *Overlay, out io.Writer) *ConsoleRenderer {
	return &ConsoleRenderer{
		overlay:  o,
		out:      out,
		interval: FrameInterval,
		now:      time.Now,
	}
}

// Run polls the overlay until ctx is done
func (r *ConsoleRenderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cue, ok := r.overlay.Poll(r.now())
			if !ok || !cue.UpdatedAt.After(last) {
				continue
			}
			last = cue.UpdatedAt
			if _, err := fmt.Fprintf(r.out, "[%s] %s\n", cue.UpdatedAt.Format(time.TimeOnly), cue.Text); err != nil {
				GetLogger().Warn("failed to write subtitle", logger.Error(err))
			}
		}
	}
}
