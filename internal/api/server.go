package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/camview/internal/api/models"
	"github.com/smazurov/camview/internal/devices"
	"github.com/smazurov/camview/internal/events"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/process"
	"github.com/smazurov/camview/internal/streams"
	"github.com/smazurov/camview/internal/version"
)

const authRealm = `Basic realm="camview"`

// StreamRegistry is the player registry the API drives. *streams.Registry
// satisfies it.
type StreamRegistry interface {
	Start(ctx context.Context, deviceID, streamURL, label string) (streams.StreamProcess, error)
	Stop(ctx context.Context, deviceID string)
	Cleanup(ctx context.Context)
	CleaningUp() bool
	Get(deviceID string) (streams.StreamProcess, bool)
	State(deviceID string) process.State
	LastFailure(deviceID string) *streams.StreamError
	List() []streams.StreamProcess
	Len() int
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	Registry     StreamRegistry
	Catalog      *devices.Catalog // Optional; start requests without a URL need it
	EventBus     *events.Bus      // Optional; /api/events is only served with a bus

	// CleanupTimeout bounds POST /api/streams/cleanup. Defaults to 10s.
	CleanupTimeout time.Duration

	PrometheusHandler http.Handler // Optional Prometheus metrics handler
}

// Server is the HTTP control surface over the player registry.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	mu         sync.Mutex
	httpServer *http.Server
	cancelBase context.CancelFunc
	registry   StreamRegistry
	catalog    *devices.Catalog
	eventBus   *events.Bus
	options    *Options
	logger     *slog.Logger
}

// basicAuthMiddleware creates middleware for HTTP basic authentication
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// Skip auth for operations without security requirements
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var encoded string
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			encoded = authHeader[len(prefix):]
		} else {
			// EventSource clients cannot set headers
			encoded = ctx.Query("auth")
		}

		if encoded == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials format", err)
			return
		}

		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// NewServer creates the API server. opts.Registry is required.
func NewServer(opts *Options) *Server {
	if opts.Registry == nil {
		panic("api: Options.Registry is required")
	}

	mux := http.NewServeMux()

	config := huma.DefaultConfig("camview API", version.String())
	config.Info.Description = "Camera player lifecycle control"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		registry: opts.Registry,
		catalog:  opts.Catalog,
		eventBus: opts.EventBus,
		options:  opts,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// No auth on metrics, scrapers rarely carry credentials
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

// Start serves the API on addr. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting camview API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.cancelBase = cancel
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends open event streams, then waits
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.httpServer, s.cancelBase
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping API server")
	cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return srv.Close()
	}
	return nil
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // Empty security = no auth required
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:     "ok",
				Message:    "API is healthy",
				Players:    s.registry.Len(),
				CleaningUp: s.registry.CleaningUp(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
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

	s.registerStreamRoutes()
	s.registerDeviceRoutes()
	s.registerLoggingRoutes()

	if s.eventBus != nil {
		s.registerSSERoutes()
	}
}

// withAuth returns security requirement for basic auth
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
