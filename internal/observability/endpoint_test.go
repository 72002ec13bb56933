package observability

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispersubs/whispersubs/internal/pipeline"
	"github.com/whispersubs/whispersubs/internal/subtitle"
)

type fakeStatus struct{ stats pipeline.Stats }

func (f fakeStatus) Stats() pipeline.Stats { return f.stats }

func newTestEndpoint(t *testing.T, cues CueSource, status StatusSource) *Endpoint {
	t.Helper()
	m, err := NewMetrics()
	require.NoError(t, err)
	return NewEndpoint("127.0.0.1:0", m, cues, status)
}

func get(t *testing.T, e *Endpoint, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestSubtitleRoute(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub := subtitle.NewPublisher()
	overlay := subtitle.NewOverlay(pub, 3*time.Second, 2*time.Second)

	e := newTestEndpoint(t, overlay, nil)
	e.now = func() time.Time { return now }

	rec := get(t, e, "/api/v1/subtitle")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	pub.Publish("hello world", now.Add(-time.Second))
	rec = get(t, e, "/api/v1/subtitle")
	require.Equal(t, http.StatusOK, rec.Code)

	var cue subtitle.Cue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cue))
	assert.Equal(t, "hello world", cue.Text)
	assert.True(t, cue.End.Equal(now.Add(2*time.Second)))

	e.now = func() time.Time { return now.Add(5 * time.Second) }
	assert.Equal(t, http.StatusNoContent, get(t, e, "/api/v1/subtitle").Code)
}

func TestStatusRoute(t *testing.T) {
	t.Parallel()

	e := newTestEndpoint(t, nil, fakeStatus{pipeline.Stats{ID: "p1", State: "running", Buffered: 480}})

	rec := get(t, e, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats pipeline.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "p1", stats.ID)
	assert.Equal(t, 480, stats.Buffered)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, e, "/api/v1/subtitle").Code)
}

func TestRequestsAreCounted(t *testing.T) {
	t.Parallel()

	e := newTestEndpoint(t, nil, nil)
	assert.Equal(t, http.StatusOK, get(t, e, "/health").Code)
	assert.Equal(t, http.StatusNotFound, get(t, e, "/nope").Code)

	body := get(t, e, "/metrics").Body.String()
	assert.Contains(t, body, `whispersubs_http_requests_total{method="GET",path="/health",status_code="200"} 1`)
	assert.Contains(t, body, `status_code="404"`)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m, err := NewMetrics()
	require.NoError(t, err)
	e := NewEndpoint(addr, m, nil, nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health") //nolint:noctx // test helper
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("endpoint did not shut down")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestRunFailsOnBadAddress(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	err = NewEndpoint("256.0.0.1:99999", m, nil, nil).Run(t.Context())
	require.Error(t, err)
}
