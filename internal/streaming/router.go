package streaming

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/camstream/internal/logging"
)

// route dispatches requests on "/" by query marker.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.serveIndex(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	switch {
	case q.Has("stream"):
		s.serveStream(w, r)
	case q.Has("snapshot"):
		s.serveSnapshot(w, r)
	case q.Has("info"):
		s.serveInfo(w, r)
	case q.Has("shutdown"):
		s.serveShutdown(w, r)
	default:
		s.serveIndex(w, r)
	}
}

// clientID identifies a connection as host:port. With ResolveClients the
// host is reverse-resolved when possible.
func (s *Server) clientID(r *http.Request) string {
	host, port, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if s.cfg.ResolveClients {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if names, err := net.DefaultResolver.LookupAddr(ctx, host); err == nil && len(names) > 0 {
			host = strings.TrimSuffix(names[0], ".")
		}
	}
	return net.JoinHostPort(host, port)
}

// isExpectedDisconnect reports the write errors that are normal when a
// viewer goes away.
func isExpectedDisconnect(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// statusRecorder captures the status code and body size for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRequestLog logs each request on "/" when HTTPLog is enabled, at a
// level chosen by status code.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	if !s.cfg.HTTPLog {
		return next
	}
	logger := logging.GetLogger("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("status", rec.status),
			slog.Int64("bytes", rec.bytes),
			slog.Duration("duration", time.Since(start)),
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, slog.String("query", r.URL.RawQuery))
		}
		if ua := r.UserAgent(); ua != "" {
			attrs = append(attrs, slog.String("user_agent", ua))
		}

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(r.Context(), level, "HTTP request completed", attrs...)
	})
}
