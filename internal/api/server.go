// Package api provides the HTTP API for the RNet bridge.
//
// It exposes bridge health, Prometheus metrics, the zone registry with
// last-known state, and a command endpoint that sends logical commands to
// the bus.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-rnet/internal/audit"
	"github.com/nerrad567/gray-logic-rnet/internal/bridge"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-rnet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
	"github.com/nerrad567/gray-logic-rnet/internal/zone"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Engine reports RNet connection status. Satisfied by *rnet.Manager.
type Engine interface {
	State() rnet.State
	Endpoint() rnet.Endpoint
}

// ConnectionChecker reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// ZoneLister lists registered zones. Satisfied by *zone.Registry.
type ZoneLister interface {
	ListZones() []zone.Zone
}

// CommandExecutor sends validated commands. Satisfied by *bridge.Bridge.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd bridge.Command) error
}

// CommandHistory queries the command log. Satisfied by *audit.SQLiteRepository.
type CommandHistory interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Engine   Engine
	MQTT     ConnectionChecker // optional
	Zones    ZoneLister
	Commands CommandExecutor
	History  CommandHistory // optional; /commands is not mounted without it
	Metrics  http.Handler   // optional; /metrics is not mounted without it
	Version  string
}

// Server is the HTTP API server for the RNet bridge.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	engine   Engine
	mqtt     ConnectionChecker
	zones    ZoneLister
	commands CommandExecutor
	history  CommandHistory
	metrics  http.Handler
	version  string
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("rnet engine is required")
	}
	if deps.Zones == nil {
		return nil, fmt.Errorf("zone registry is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command executor is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		engine:   deps.Engine,
		mqtt:     deps.MQTT,
		zones:    deps.Zones,
		commands: deps.Commands,
		history:  deps.History,
		metrics:  deps.Metrics,
		version:  deps.Version,
	}, nil
}

// Start binds the listener and serves in a background goroutine.
//
// Returns an error if the address cannot be bound (port in use, etc.).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
