package whisper

import "context"

// SilentLoader loads a model that never produces text. It is used for dry
// runs and tests of the audio path.
type SilentLoader struct{}

// Load returns a silent model
func (SilentLoader) Load(ctx context.Context, _ string, _ Device) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &silentModel{}, nil
}

type silentModel struct {
	closed bool
}

func (m *silentModel) Process(ctx context.Context, _ []float32, _ Params) error {
	if m.closed {
		return ErrModelClosed
	}
	return ctx.Err()
}

func (m *silentModel) SegmentCount() int { return 0 }

func (m *silentModel) Segment(int) Segment { return Segment{} }

func (m *silentModel) Close() error {
	m.closed = true
	return nil
}
