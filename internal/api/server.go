// Package api is the local HTTP front end of the daemon. Handlers submit
// commands to the controllers and expose their state; /api/events streams
// notifications as server-sent events.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/rogd/internal/api/models"
	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/ctrl"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/laptop"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/store"
	"github.com/smazurov/rogd/internal/version"
)

// LEDService is the keyboard LED controller as seen by the API.
type LEDService interface {
	Submit(ctx context.Context, cmd ctrl.LEDCommand) error
	State() ctrl.LEDState
}

// AnimeService is the AniMe matrix controller as seen by the API.
type AnimeService interface {
	Submit(ctx context.Context, cmd ctrl.AnimeCommand) error
}

// FanService is the fan/CPU controller as seen by the API.
type FanService interface {
	Submit(ctx context.Context, cmd ctrl.FanCommand) error
	Level() codec.FanLevel
	Profiles() store.PowerProfiles
}

// ChargeService is the battery charge controller as seen by the API.
type ChargeService interface {
	Submit(ctx context.Context, cmd ctrl.ChargeCommand) error
	Limit() uint8
}

// BIOSService is the BIOS settings controller as seen by the API.
type BIOSService interface {
	Submit(ctx context.Context, cmd ctrl.BIOSCommand) error
	Supported() ctrl.BIOSSupport
	DedicatedGfx() (bool, error)
	PostSound() (bool, error)
}

// Options wires the server to the daemon. Nil services disable their routes.
type Options struct {
	Bus               *events.Bus
	Laptop            laptop.Laptop
	KbdLED            LEDService
	Anime             AnimeService
	Fan               FanService
	Charge            ChargeService
	BIOS              BIOSService
	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the huma API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server using Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("rogd API", "1.0.0")
	config.Info.Description = "Keyboard LED, AniMe matrix, fan, battery and BIOS control for ASUS laptops"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.Bus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()
	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting rogd API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop closes the listener and all connections, SSE streams included.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get daemon version information",
		Tags:        []string{"system"},
	}, func(ctx context.Context, input *struct{}) (*models.VersionResponse, error) {
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

	s.registerSupportedRoutes()
	s.registerLEDRoutes()
	s.registerAnimeRoutes()
	s.registerFanRoutes()
	s.registerChargeRoutes()
	s.registerBIOSRoutes()
	s.registerSSERoutes()
}

// commandError maps a controller error onto an HTTP error.
func commandError(msg string, err error) error {
	switch {
	case errors.Is(err, ctrl.ErrUnsupported),
		errors.Is(err, codec.ErrInvalidImage),
		errors.Is(err, codec.ErrUnknownMode),
		errors.Is(err, codec.ErrParse):
		return huma.Error422UnprocessableEntity(msg, err)
	case errors.Is(err, ctrl.ErrNotPresent):
		return huma.Error404NotFound(msg, err)
	case errors.Is(err, ctrl.ErrStopped):
		return huma.Error503ServiceUnavailable(msg, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return huma.Error503ServiceUnavailable(msg, err)
	}
	return huma.Error500InternalServerError(msg, err)
}
