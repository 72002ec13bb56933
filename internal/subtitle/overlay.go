package subtitle

import "time"

// Cue is one subtitle to show between Start and End
type Cue struct {
	Text      string    `json:"text"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Overlay answers renderer queries from a Publisher
type Overlay struct {
	pub       *Publisher
	staleness time.Duration
	display   time.Duration
}

// NewOverlay creates an overlay. Text older than staleness is not shown;
// a shown cue stays valid for display.
func NewOverlay(pub *Publisher, staleness, display time.Duration) *Overlay {
	return &Overlay{pub: pub, staleness: staleness, display: display}
}

// Poll returns the cue to show at now, if any
func (o *Overlay) Poll(now time.Time) (Cue, bool) {
	r, ok := o.pub.Read()
	if !ok || now.Sub(r.UpdatedAt) > o.staleness {
		return Cue{}, false
	}
	return Cue{
		Text:      r.Text,
		Start:     now,
		End:       now.Add(o.display),
		UpdatedAt: r.UpdatedAt,
	}, true
}
