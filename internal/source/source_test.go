package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camstream/internal/gate"
	"github.com/smazurov/camstream/internal/logging"
	"github.com/smazurov/camstream/internal/metrics"
)

type countingSink struct {
	mu     sync.Mutex
	frames int
	last   image.Image
}

func (s *countingSink) Write(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.last = img
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew(t *testing.T) {
	base := Config{Sink: &countingSink{}, Gate: gate.New(), Logger: logging.Discard()}

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{"default is pattern", "", "*source.Pattern", nil},
		{"pattern scheme", "pattern:", "*source.Pattern", nil},
		{"http", "http://cam.local/video", "*source.MJPEG", nil},
		{"https", "https://cam.local/video", "*source.MJPEG", nil},
		{"rtsp not supported", "rtsp://cam.local/stream", "", ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.URL = tt.url
			src, err := New(cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			switch src.(type) {
			case *Pattern:
				if tt.want != "*source.Pattern" {
					t.Errorf("got Pattern, want %s", tt.want)
				}
			case *MJPEG:
				if tt.want != "*source.MJPEG" {
					t.Errorf("got MJPEG, want %s", tt.want)
				}
			}
		})
	}

	if _, err := New(Config{}); err == nil {
		t.Error("New without sink and gate should fail")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPatternFrame(t *testing.T) {
	p := NewPattern(Config{Width: 64, Height: 48, Sink: &countingSink{}, Gate: gate.New()})
	first := p.Frame()
	second := p.Frame()

	if first.Bounds() != image.Rect(0, 0, 64, 48) {
		t.Fatalf("bounds = %v", first.Bounds())
	}
	if bytes.Equal(first.Pix, second.Pix) {
		t.Error("consecutive frames should differ")
	}
}

func TestPatternFollowsGate(t *testing.T) {
	sink := &countingSink{}
	g := gate.New()
	rate := &rateRecorder{}
	p := NewPattern(Config{Width: 16, Height: 16, FPS: 200, Sink: sink, Gate: g, Rate: rate, Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatal("pattern produced frames while the gate was closed")
	}

	g.AddSession()
	waitFor(t, "frames after gate opened", func() bool { return sink.count() > 3 })

	g.DropSession()
	time.Sleep(30 * time.Millisecond)
	idle := sink.count()
	time.Sleep(30 * time.Millisecond)
	if sink.count() != idle {
		t.Error("pattern kept producing after the gate closed")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

type rateRecorder struct{ fps atomic.Value }

func (r *rateRecorder) SetEncodeFPS(fps float64) { r.fps.Store(fps) }

// mjpegServer serves an endless multipart JPEG feed and counts connections.
func mjpegServer(t *testing.T, conns *atomic.Int32) *httptest.Server {
	t.Helper()
	var frame bytes.Buffer
	if err := jpeg.Encode(&frame, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatal(err)
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		flusher := w.(http.Flusher)
		for {
			part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
			if err != nil {
				return
			}
			if _, err := part.Write(frame.Bytes()); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
}

func TestMJPEGPullsWhileGateOpen(t *testing.T) {
	var conns atomic.Int32
	srv := mjpegServer(t, &conns)
	defer srv.Close()

	sink := &countingSink{}
	g := gate.New()
	src := NewMJPEG(Config{URL: srv.URL, Sink: sink, Gate: g, Logger: logging.Discard(), RetryDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = src.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	if conns.Load() != 0 {
		t.Fatal("connected upstream with no viewers")
	}

	g.AddSession()
	waitFor(t, "decoded frames", func() bool { return sink.count() > 2 })

	sink.mu.Lock()
	size := sink.last.Bounds().Size()
	sink.mu.Unlock()
	if size != image.Pt(8, 8) {
		t.Errorf("decoded frame size = %v", size)
	}

	g.DropSession()
	time.Sleep(50 * time.Millisecond)
	idle := sink.count()
	time.Sleep(50 * time.Millisecond)
	if sink.count() != idle {
		t.Error("upstream still pulled after the gate closed")
	}

	g.AddSession()
	waitFor(t, "reconnect on reopen", func() bool { return conns.Load() >= 2 })
	g.DropSession()
}

func TestMJPEGRetriesOnError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "camera offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := gate.New()
	g.AddSession()
	src := NewMJPEG(Config{
		URL: srv.URL, Sink: &countingSink{}, Gate: g, Logger: logging.Discard(),
		RetryDelay: 5 * time.Millisecond, MaxRetryDelay: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	waitFor(t, "retries", func() bool { return hits.Load() >= 3 })
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
}

type countingRate struct{ calls int }

func (r *countingRate) SetEncodeFPS(float64) { r.calls++ }

func TestFrameDonePublishesOnlyWhileOpen(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*gate.Gate)
		wantOK    bool
		wantCalls int
	}{
		{"open", func(g *gate.Gate) { g.AddSession() }, true, 1},
		{"closed", func(*gate.Gate) {}, false, 0},
		{"closed after a session", func(g *gate.Gate) { g.AddSession(); g.DropSession() }, false, 0},
		{"forced for shutdown", func(g *gate.Gate) { g.ForceUnlock() }, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := gate.New()
			tt.setup(g)
			rate := &countingRate{}
			start := time.Now()
			w := metrics.NewWindowLength(start, time.Second)
			w.Frame()

			ok := frameDone(Config{Gate: g, Rate: rate}, w, start.Add(2*time.Second))
			if ok != tt.wantOK || rate.calls != tt.wantCalls {
				t.Errorf("frameDone() = %v with %d publishes, want %v with %d", ok, rate.calls, tt.wantOK, tt.wantCalls)
			}
		})
	}
}

// closingSink closes the gate while the frame it receives is still being
// produced, the way a last viewer can leave during an upstream decode.
type closingSink struct {
	countingSink
	g       *gate.Gate
	closeAt int
}

func (s *closingSink) Write(img image.Image) {
	s.countingSink.Write(img)
	if s.count() == s.closeAt {
		s.g.DropSession()
	}
}

// gateRate records publishes and whether the gate was open for each.
type gateRate struct {
	g            *gate.Gate
	mu           sync.Mutex
	open, closed int
}

func (r *gateRate) SetEncodeFPS(float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.g.IsOpen() {
		r.open++
	} else {
		r.closed++
	}
}

func TestPatternNoRateAfterGateCloses(t *testing.T) {
	g := gate.New()
	sink := &closingSink{g: g, closeAt: 3}
	rate := &gateRate{g: g}
	p := NewPattern(Config{Width: 8, Height: 8, FPS: 200, Sink: sink, Gate: g, Rate: rate, Logger: logging.Discard()})

	// Every clock read lands in a new window, so each frame could publish.
	clock := time.Now()
	p.now = func() time.Time {
		clock = clock.Add(10 * time.Second)
		return clock
	}

	g.AddSession()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	waitFor(t, "gate closed by the sink", func() bool { return !g.IsOpen() && sink.count() >= 3 })
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	rate.mu.Lock()
	defer rate.mu.Unlock()
	if rate.closed != 0 {
		t.Errorf("encode rate published %d times after the gate closed", rate.closed)
	}
	if rate.open == 0 {
		t.Error("encode rate never published while the gate was open")
	}
	if sink.count() != 3 {
		t.Errorf("frames = %d, want production to stop at the closing frame", sink.count())
	}
}
