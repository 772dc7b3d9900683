// Package streaming serves the shared frame store to HTTP clients as MJPEG
// streams and JPEG snapshots, routed by query marker on "/".
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/frame"
	"github.com/smazurov/camstream/internal/gate"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/metrics"
)

// ErrShutdown is returned by Serve when the server stopped because a client
// called /?shutdown.
var ErrShutdown = errors.New("streaming: shutdown requested")

// Exit codes, following sysexits.h.
const (
	ExitOK       = 0
	ExitSoftware = 70
	ExitTempFail = 75
)

// ExitCode maps the result of Serve to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrShutdown):
		return ExitTempFail
	default:
		return ExitSoftware
	}
}

// drainTimeout bounds how long stopping waits for open sessions to leave.
const drainTimeout = 10 * time.Second

// Options holds the collaborators of a Server. Store is required.
type Options struct {
	Store    *frame.Store
	Tracker  *metrics.Tracker
	EventBus *events.Bus
	Logger   *slog.Logger
}

// Server owns the listener, the running flag and the encoder gate.
type Server struct {
	cfg      Config
	store    *frame.Store
	gate     *gate.Gate
	tracker  *metrics.Tracker
	eventBus *events.Bus
	logger   *slog.Logger
	hostname string

	mux        *http.ServeMux
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener

	running           atomic.Bool
	shutdownRequested atomic.Bool
	frameWait         atomic.Int64

	stopOnce sync.Once
	drained  chan struct{}

	// window is the FPS measurement length; tests shorten it.
	window time.Duration
}

// NewServer creates a server and its encoder gate. The gate is closed until
// the first session arrives.
func NewServer(cfg Config, opts Options) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, errors.New("streaming: frame store is required")
	}
	if opts.Tracker == nil {
		opts.Tracker = metrics.NewTracker(nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("streaming")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	s := &Server{
		cfg:      cfg,
		store:    opts.Store,
		tracker:  opts.Tracker,
		eventBus: opts.EventBus,
		logger:   opts.Logger,
		hostname: hostname,
		mux:      http.NewServeMux(),
		drained:  make(chan struct{}),
		window:   metrics.WindowLength,
	}
	s.gate = gate.New(
		gate.WithIdleHook(s.tracker.Reset),
		gate.WithCountHook(s.tracker.SetActiveSessions),
		gate.WithObserver(s.gateChanged),
	)
	s.running.Store(true)
	s.frameWait.Store(int64(cfg.frameWait()))

	s.mux.Handle("/", s.withRequestLog(http.HandlerFunc(s.route)))

	// Long-lived responses such as SSE only end when their request context
	// does, so stopping cancels every request context.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	s.httpServer.RegisterOnShutdown(cancelRequests)
	return s, nil
}

// Mux returns the ServeMux so other packages can mount routes beside "/".
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Gate returns the encoder gate that frame sources wait on.
func (s *Server) Gate() *gate.Gate {
	return s.gate
}

// Config returns the startup configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Running reports whether sessions should keep streaming.
func (s *Server) Running() bool {
	return s.running.Load()
}

// ShutdownRequested reports whether /?shutdown was called.
func (s *Server) ShutdownRequested() bool {
	return s.shutdownRequested.Load()
}

// FrameWait returns the live inter-frame wait for stream sessions.
func (s *Server) FrameWait() time.Duration {
	return time.Duration(s.frameWait.Load())
}

// SetFrameWait changes the inter-frame wait for every stream session,
// current and future.
func (s *Server) SetFrameWait(d time.Duration) {
	old := time.Duration(s.frameWait.Swap(int64(d)))
	if old != d {
		s.logger.Info("Frame wait changed", "from", old, "to", d)
	}
}

// Listen binds the listener for the configured address family.
func (s *Server) Listen() error {
	ln, err := net.Listen(s.cfg.Network(), s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", s.cfg.Network(), s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("Listening", "network", s.cfg.Network(), "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until the server is stopped. Cancelling ctx
// stops it gracefully and returns nil. A /?shutdown call returns
// ErrShutdown once open sessions have drained. Any other error is fatal to
// the listener.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopWatch:
		}
	}()

	err := s.httpServer.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		s.running.Store(false)
		s.gate.ForceUnlock()
		return fmt.Errorf("serve: %w", err)
	}

	<-s.drained
	if s.shutdownRequested.Load() {
		return ErrShutdown
	}
	return nil
}

// Stop ends all sessions and closes the listener. It returns immediately;
// Serve returns once the drain finishes.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		s.gate.ForceUnlock()
		go s.drain()
	})
}

// RequestShutdown is what /?shutdown does after replying.
func (s *Server) RequestShutdown() {
	if !s.shutdownRequested.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info("Shutdown requested")
	s.Stop()
}

// Done is closed once the server has drained.
func (s *Server) Done() <-chan struct{} {
	return s.drained
}

func (s *Server) drain() {
	defer close(s.drained)

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("Drain timed out, closing connections", "error", err)
		_ = s.httpServer.Close()
	}
	s.logger.Info("Server stopped")
}

func (s *Server) addSession() {
	s.gate.AddSession()
}

func (s *Server) dropSession() {
	s.gate.DropSession()
}

func (s *Server) gateChanged(open bool, sessions int) {
	if open {
		s.logger.Debug("Encoder gate opened", "sessions", sessions)
	} else {
		s.logger.Debug("Encoder gate closed, statistics reset")
	}
	s.eventBus.Publish(events.GateChangedEvent{
		Open:      open,
		Sessions:  sessions,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
