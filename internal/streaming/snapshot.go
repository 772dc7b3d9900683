package streaming

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/frame"
	"github.com/smazurov/camstream/internal/render"
)

// serveSnapshot answers with a single JPEG. The frame is encoded before any
// header is written so Content-Length is exact.
func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	client := s.clientID(r)

	// Registered before the read, so even a 425 wakes the producer.
	s.addSession()
	defer s.dropSession()

	img, err := s.store.Read()
	if err != nil {
		if errors.Is(err, frame.ErrNotReady) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "no frame available yet", http.StatusTooEarly)
			return
		}
		s.logger.Error("Snapshot read failed", "client", client, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	out := render.Rotate(img, s.resolveRotate(r.URL.Query(), s.cfg.Rotate))
	render.DrawLines(out, []string{client, now.Format(clockFormat)})

	jpg, err := render.EncodeJPEG(out, s.cfg.JPEGQuality)
	if err != nil {
		s.logger.Error("Snapshot encode failed", "client", client, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(jpg)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := w.Write(jpg); err != nil && !isExpectedDisconnect(err) {
			s.logger.Warn("Snapshot write failed", "client", client, "error", err)
		}
	}

	total := s.tracker.IncSnapshots()
	s.logger.Debug("Snapshot served", "client", client, "bytes", len(jpg))
	s.eventBus.Publish(events.SnapshotEvent{
		Client:    client,
		Bytes:     len(jpg),
		Total:     total,
		Timestamp: now.Format(time.RFC3339),
	})
}
