package subtitle

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return epoch.Add(time.Duration(sec) * time.Second)
}

func TestReadIfFresh(t *testing.T) {
	t.Parallel()

	p := NewPublisher()
	_, ok := p.ReadIfFresh(at(0), 3*time.Second)
	assert.False(t, ok, "nothing published yet")

	p.Publish("hola", at(100))

	text, ok := p.ReadIfFresh(at(102), 3*time.Second)
	require.True(t, ok)
	assert.Equal(t, "hola", text)

	text, ok = p.ReadIfFresh(at(103), 3*time.Second)
	assert.True(t, ok, "exactly at the threshold is still fresh")
	assert.Equal(t, "hola", text)

	_, ok = p.ReadIfFresh(at(104), 3*time.Second)
	assert.False(t, ok)
}

func TestPublishOverwritesAndClear(t *testing.T) {
	t.Parallel()

	p := NewPublisher()
	p.Publish("one", at(1))
	p.Publish("two", at(2))

	r, ok := p.Read()
	require.True(t, ok)
	assert.Equal(t, Result{Text: "two", UpdatedAt: at(2)}, r)

	p.Clear()
	_, ok = p.Read()
	assert.False(t, ok)
}

func TestPublisherConcurrentReaders(t *testing.T) {
	t.Parallel()

	p := NewPublisher()
	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 1000 {
				if r, ok := p.Read(); ok {
					// text and timestamp are written together
					assert.Equal(t, r.UpdatedAt.Second()%2 == 0, r.Text == "even")
				}
			}
		})
	}
	for i := range 1000 {
		text := "odd"
		if i%2 == 0 {
			text = "even"
		}
		p.Publish(text, at(i))
	}
	wg.Wait()
}

func TestOverlayPoll(t *testing.T) {
	t.Parallel()

	p := NewPublisher()
	o := NewOverlay(p, 3*time.Second, 2*time.Second)

	_, ok := o.Poll(at(0))
	assert.False(t, ok)

	p.Publish("hola", at(100))
	cue, ok := o.Poll(at(101))
	require.True(t, ok)
	assert.Equal(t, "hola", cue.Text)
	assert.Equal(t, at(101), cue.Start)
	assert.Equal(t, at(103), cue.End)

	_, ok = o.Poll(at(104))
	assert.False(t, ok)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleRendererPrintsEachResultOnce(t *testing.T) {
	t.Parallel()

	p := NewPublisher()
	var out syncBuffer
	r := NewConsoleRenderer(NewOverlay(p, time.Hour, 2*time.Second), &out)
	r.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	p.Publish("first line", time.Now())
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "first line") },
		time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	p.Publish("second line", time.Now().Add(time.Millisecond))
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "second line") },
		time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, strings.Count(out.String(), "first line"))
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
}
