// Package status serves the progress of a running load over HTTP.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/pipeline"
)

// Reporter exposes the live summaries of the pipelines in a load.
type Reporter interface {
	Summaries() []pipeline.Summary
	Summary(name string) (pipeline.Summary, bool)
}

type Server struct {
	echo      *echo.Echo
	reporter  Reporter
	logger    ectologger.Logger
	startTime time.Time
}

type Health struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type Status struct {
	State pipeline.State     `json:"state"`
	Jobs  []pipeline.Summary `json:"jobs"`
}

func NewServer(serviceName string, reporter Reporter, logger ectologger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Use(RequestID())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(RequestLogger(logger))

	s := &Server{
		echo:      e,
		reporter:  reporter,
		logger:    logger,
		startTime: time.Now(),
	}

	e.GET("/health", s.Health)
	e.GET("/status", s.Status)
	e.GET("/status/:job", s.JobStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr in the background. Errors other than a clean
// shutdown are logged.
func (s *Server) Start(addr string) {
	go func() {
		s.logger.WithField("addr", addr).Info("Status server listening")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Status server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, Health{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

// Status reports every job started so far. The overall state is the state
// of the most recent job, or CREATED before any job starts.
func (s *Server) Status(c echo.Context) error {
	jobs := s.reporter.Summaries()
	state := pipeline.StateCreated
	for _, job := range jobs {
		if job.State == pipeline.StateFailed {
			state = pipeline.StateFailed
			break
		}
		state = job.State
	}
	return c.JSON(http.StatusOK, Status{State: state, Jobs: jobs})
}

func (s *Server) JobStatus(c echo.Context) error {
	name := c.Param("job")
	summary, ok := s.reporter.Summary(name)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "job %s has not started", name).
			AddMetaValue("job", name)
	}
	return c.JSON(http.StatusOK, summary)
}
