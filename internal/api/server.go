package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/streaming"
	"github.com/smazurov/camstream/internal/version"
)

// StatsProvider is the part of the streaming server the API reads.
type StatsProvider interface {
	Stats() streaming.Stats
	Config() streaming.Config
	Running() bool
}

// FrameState reports whether a frame exists. *frame.Store implements it.
type FrameState interface {
	Ready() bool
}

// Options configures the API server.
type Options struct {
	// Mux is shared with the streaming server; API routes are mounted on it.
	Mux               *http.ServeMux
	Stats             StatsProvider
	Frames            FrameState
	EventBus          *events.Bus
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
	HTTPLog           bool
}

// Server is the Huma v2 API mounted next to the MJPEG endpoints.
type Server struct {
	api      huma.API
	mux      *http.ServeMux
	stats    StatsProvider
	frames   FrameState
	eventBus *events.Bus
	logger   *slog.Logger
}

// NewServer registers the API on opts.Mux, creating a mux when none is given.
func NewServer(opts *Options) *Server {
	mux := opts.Mux
	if mux == nil {
		mux = http.NewServeMux()
	}

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("camstream API", version.String())
	config.Info.Description = "Statistics, logs and events of the camstream MJPEG server"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		stats:    opts.Stats,
		frames:   opts.Frames,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	if opts.HTTPLog {
		api.UseMiddleware(HTTPLoggingMiddleware)
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying HTTP ServeMux.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check server health and whether a frame is available",
		Tags:        []string{"health"},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		data := models.HealthData{Status: "ok", Message: "camstream is healthy", Running: true}
		if s.stats != nil {
			data.Running = s.stats.Running()
		}
		if s.frames != nil {
			data.HasFrame = s.frames.Ready()
		}
		if !data.Running {
			data.Status = "stopping"
			data.Message = "camstream is shutting down"
		}
		return &models.HealthResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Stats",
		Description: "Live streaming statistics and the startup configuration, same as /?info",
		Tags:        []string{"streaming"},
		Errors:      []int{503},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		if s.stats == nil {
			return nil, huma.Error503ServiceUnavailable("streaming server not attached")
		}
		return &models.StatsResponse{
			Body: streaming.Info{Stats: s.stats.Stats(), Config: s.stats.Config()},
		}, nil
	})

	s.registerLogRoutes()
	s.registerSSERoutes()
}
