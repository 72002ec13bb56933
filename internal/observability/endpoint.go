package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
	metricspkg "github.com/whispersubs/whispersubs/internal/observability/metrics"
	"github.com/whispersubs/whispersubs/internal/pipeline"
	"github.com/whispersubs/whispersubs/internal/subtitle"
)

// CueSource yields the subtitle to show at a given time
type CueSource interface {
	Poll(now time.Time) (subtitle.Cue, bool)
}

// StatusSource reports pipeline counters
type StatusSource interface {
	Stats() pipeline.Stats
}

// Endpoint serves /metrics, the current subtitle and pipeline status
type Endpoint struct {
	echo          *echo.Echo
	listenAddress string
	metrics       *Metrics
	cues          CueSource
	status        StatusSource
	now           func() time.Time
}

// NewEndpoint creates the HTTP endpoint. cues and status may be nil, in
// which case their routes answer 503.
func NewEndpoint(listen string, m *Metrics, cues CueSource, status StatusSource) *Endpoint {
	e := &Endpoint{
		echo:          echo.New(),
		listenAddress: listen,
		metrics:       m,
		cues:          cues,
		status:        status,
		now:           time.Now,
	}
	e.echo.HideBanner = true
	e.echo.HidePort = true
	e.echo.Server.ReadTimeout = 10 * time.Second
	e.echo.Server.IdleTimeout = 60 * time.Second

	e.echo.Use(middleware.Recover())
	e.echo.Use(e.requestMetrics)

	e.echo.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.echo.GET("/health", e.health)
	e.echo.GET("/api/v1/subtitle", e.subtitle)
	e.echo.GET("/api/v1/status", e.pipelineStatus)
	return e
}

// Handler exposes the router, mainly for tests
func (e *Endpoint) Handler() http.Handler {
	return e.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryNetwork).
			Context("listen", e.listenAddress).
			Build()
	}
	e.echo.Listener = ln

	serveErr := make(chan error, 1)
	go func() {
		GetLogger().Info("telemetry endpoint starting", logger.String("address", ln.Addr().String()))
		serveErr <- e.echo.Start("")
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component("telemetry").
				Category(errors.CategoryHTTP).
				Build()
		}
		return nil
	case <-ctx.Done():
	}

	GetLogger().Info("stopping telemetry endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.echo.Shutdown(shutdownCtx); err != nil {
		GetLogger().Error("telemetry endpoint shutdown error", logger.Error(err))
		return err
	}
	<-serveErr
	return nil
}

// requestMetrics records route-level request counts and latency
func (e *Endpoint) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		e.metrics.HTTP.RecordRequest(c.Request().Method, path, c.Response().Status, time.Since(start).Seconds())
		return nil
	}
}

func (e *Endpoint) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// subtitle answers with the current cue, or 204 when nothing is fresh
func (e *Endpoint) subtitle(c echo.Context) error {
	if e.cues == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no pipeline running")
	}
	cue, ok := e.cues.Poll(e.now())
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, cue)
}

func (e *Endpoint) pipelineStatus(c echo.Context) error {
	if e.status == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no pipeline running")
	}
	return c.JSON(http.StatusOK, e.status.Stats())
}
