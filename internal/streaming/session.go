package streaming

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/frame"
	"github.com/smazurov/camstream/internal/metrics"
	"github.com/smazurov/camstream/internal/render"
)

const (
	boundary      = "boundarydonotcross"
	streamType    = "multipart/x-mixed-replace; boundary=" + boundary
	timestampHead = "X-Timestamp: 0.000000"
	clockFormat   = "2006-01-02 15:04:05"
)

// Session end reasons reported in SessionEndedEvent.
const (
	endShutdown   = "shutdown"
	endDisconnect = "disconnect"
	endError      = "error"
)

// streamParams are the per-request stream settings resolved from the query.
type streamParams struct {
	rotate  float64
	showFPS bool
}

// resolveStreamParams applies query overrides on top of the server
// defaults. A literal "showfps" anywhere in the request URI turns the
// overlay on, then a literal "hidefps" turns it off.
func (s *Server) resolveStreamParams(r *http.Request) streamParams {
	p := streamParams{rotate: s.cfg.Rotate, showFPS: s.cfg.ShowFPS}
	p.rotate = s.resolveRotate(r.URL.Query(), p.rotate)

	uri := r.URL.RequestURI()
	if strings.Contains(uri, "showfps") {
		p.showFPS = true
	}
	if strings.Contains(uri, "hidefps") {
		p.showFPS = false
	}
	return p
}

// resolveRotate returns the rotate query value when it parses, else def.
func (s *Server) resolveRotate(q url.Values, def float64) float64 {
	raw := q.Get("rotate")
	if raw == "" {
		return def
	}
	deg, err := strconv.ParseFloat(raw, 64)
	if err != nil || !validRotate(deg) {
		s.logger.Debug("Ignoring invalid rotate value", "rotate", raw)
		return def
	}
	return deg
}

// applyEncodeWait handles the encodewait query parameter, which changes
// the frame wait for the whole process.
func (s *Server) applyEncodeWait(q url.Values, client string) {
	raw := q.Get("encodewait")
	if raw == "" {
		return
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || !validEncodeWait(secs) {
		s.logger.Warn("Ignoring invalid encodewait", "value", raw, "client", client)
		return
	}
	s.logger.Info("Frame wait set by client", "client", client, "encode_wait", secs)
	s.SetFrameWait(secondsToDuration(secs))
}

// serveStream runs one MJPEG stream session.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	client := s.clientID(r)
	s.addSession()

	if !s.store.Ready() {
		defer s.dropSession()
		writeLoading(w)
		return
	}

	q := r.URL.Query()
	s.applyEncodeWait(q, client)
	params := s.resolveStreamParams(r)

	sess := &streamSession{
		server:  s,
		client:  client,
		params:  params,
		w:       w,
		rc:      http.NewResponseController(w),
		r:       r,
		started: time.Now(),
	}
	defer func() {
		s.tracker.Remove(client)
		s.dropSession()
	}()

	w.Header().Set("Content-Type", streamType)
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	s.logger.Info("Stream started", "client", client, "rotate", params.rotate, "show_fps", params.showFPS)
	s.eventBus.Publish(events.SessionStartedEvent{
		Client:    client,
		Kind:      events.KindStream,
		Rotate:    params.rotate,
		ShowFPS:   params.showFPS,
		Timestamp: sess.started.Format(time.RFC3339),
	})

	reason := sess.run()

	s.logger.Info("Stream ended", "client", client, "reason", reason, "frames", sess.frames, "duration", time.Since(sess.started))
	s.eventBus.Publish(events.SessionEndedEvent{
		Client:    client,
		Kind:      events.KindStream,
		Frames:    sess.frames,
		Bytes:     sess.bytes,
		Duration:  time.Since(sess.started).Seconds(),
		Reason:    reason,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// streamSession is the state of one stream connection.
type streamSession struct {
	server  *Server
	client  string
	params  streamParams
	w       io.Writer
	rc      *http.ResponseController
	r       *http.Request
	started time.Time

	primed bool
	fps    float64
	frames int64
	bytes  int64
}

// run writes parts until the server stops or the client goes away and
// returns why it ended.
func (ss *streamSession) run() string {
	s := ss.server
	window := metrics.NewWindowLength(time.Now(), s.window)
	first := true

	for s.Running() {
		if fps, ok := window.Roll(time.Now()); ok {
			ss.fps = fps
			ss.primed = true
			s.tracker.Publish(ss.client, fps)
		}

		img, err := s.store.Read()
		if err == nil {
			jpg, err := ss.render(img)
			if err != nil {
				s.logger.Error("Failed to encode frame", "client", ss.client, "error", err)
				return endError
			}
			if err := ss.writePart(jpg, first); err != nil {
				if isExpectedDisconnect(err) || ss.r.Context().Err() != nil {
					s.logger.Debug("Stream client disconnected", "client", ss.client, "error", err)
					return endDisconnect
				}
				s.logger.Warn("Stream write failed", "client", ss.client, "error", err)
				return endError
			}
			first = false
			window.Frame()
			ss.frames++
			ss.bytes += int64(len(jpg))
			s.tracker.AddFrame(len(jpg))
		} else if !errors.Is(err, frame.ErrNotReady) {
			s.logger.Warn("Frame read failed", "client", ss.client, "error", err)
		}

		if !ss.pause() {
			if !s.Running() {
				return endShutdown
			}
			return endDisconnect
		}
	}
	return endShutdown
}

// pause sleeps for the live frame wait. It returns false when the client
// went away during the wait.
func (ss *streamSession) pause() bool {
	wait := ss.server.FrameWait()
	if wait <= 0 {
		return ss.r.Context().Err() == nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ss.r.Context().Done():
		return false
	}
}

// render rotates, annotates and encodes one frame.
func (ss *streamSession) render(img *image.RGBA) ([]byte, error) {
	s := ss.server
	out := render.Rotate(img, ss.params.rotate)
	if ss.params.showFPS && ss.primed {
		render.DrawLines(out, ss.overlay())
	}
	return render.EncodeJPEG(out, s.cfg.JPEGQuality)
}

func (ss *streamSession) overlay() []string {
	t := ss.server.tracker
	lines := []string{
		ss.client,
		time.Now().Format(clockFormat),
		fmt.Sprintf("encoder: %.1f fps", t.EncodeFPS()),
	}
	if n := t.Count(); n > 0 {
		lines = append(lines, fmt.Sprintf("%d streams @ %.1f fps", n, ss.fps))
	}
	return lines
}

// writePart writes one multipart section and flushes it to the client.
func (ss *streamSession) writePart(jpg []byte, first bool) error {
	sep := "\r\n--" + boundary + "\r\n"
	if first {
		sep = "--" + boundary + "\r\n"
	}
	header := fmt.Sprintf("%sContent-type: image/jpeg\r\nContent-length: %d\r\n%s\r\n\r\n", sep, len(jpg), timestampHead)
	if _, err := io.WriteString(ss.w, header); err != nil {
		return err
	}
	if _, err := ss.w.Write(jpg); err != nil {
		return err
	}
	return ss.rc.Flush()
}

func writeLoading(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, loadingPage)
}
