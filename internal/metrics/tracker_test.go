package metrics

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestAverage(t *testing.T) {
	tests := []struct {
		name  string
		slots map[string]float64
		want  float64
	}{
		{"empty", nil, 0},
		{"single", map[string]float64{"a": 12.4}, 12.4},
		{"mean", map[string]float64{"a": 10, "b": 20, "c": 30}, 20},
		{"zero slot counts", map[string]float64{"a": 0, "b": 5}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(nil)
			for client, fps := range tt.slots {
				tr.Publish(client, fps)
			}
			if got := tr.Average(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Average() = %v, want %v", got, tt.want)
			}
			if tr.Count() != len(tt.slots) {
				t.Errorf("Count() = %d, want %d", tr.Count(), len(tt.slots))
			}
		})
	}
}

func TestPublishOverwritesAndRemove(t *testing.T) {
	tr := NewTracker(nil)
	tr.Publish("a", 5)
	tr.Publish("a", 7)
	tr.Publish("b", 9)

	if got := tr.Sessions()["a"]; got != 7 {
		t.Errorf("slot a = %v, want 7", got)
	}

	tr.Remove("a")
	tr.Remove("missing")
	if _, ok := tr.Sessions()["a"]; ok {
		t.Error("slot a still present after Remove")
	}
	if tr.Average() != 9 {
		t.Errorf("Average() = %v, want 9", tr.Average())
	}
}

func TestSessionsReturnsCopy(t *testing.T) {
	tr := NewTracker(nil)
	tr.Publish("a", 1)

	m := tr.Sessions()
	m["a"] = 99
	m["b"] = 1

	if got := tr.Sessions(); got["a"] != 1 || len(got) != 1 {
		t.Errorf("tracker table was modified: %v", got)
	}
}

func TestResetClearsTableAndEncodeGauge(t *testing.T) {
	tr := NewTracker(nil)
	tr.Publish("a", 3)
	tr.SetEncodeFPS(15)
	tr.IncSnapshots()

	tr.Reset()

	if tr.Count() != 0 || tr.Average() != 0 {
		t.Error("slot table not cleared")
	}
	if tr.EncodeFPS() != 0 {
		t.Errorf("EncodeFPS() = %v, want 0", tr.EncodeFPS())
	}
	if tr.Snapshots() != 1 {
		t.Error("snapshot counter must survive Reset")
	}
}

func TestConcurrentPublish(t *testing.T) {
	tr := NewTracker(nil)
	clients := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(client string) {
			defer wg.Done()
			for i := range 100 {
				tr.Publish(client, float64(i))
				_ = tr.Average()
			}
		}(c)
	}
	wg.Wait()

	if tr.Count() != len(clients) {
		t.Fatalf("Count() = %d, want %d", tr.Count(), len(clients))
	}
	if tr.Average() != 99 {
		t.Errorf("Average() = %v, want 99", tr.Average())
	}
}

func TestHandlerExportsTrackerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := NewTracker(reg)
	tr.Publish("10.0.0.5:4000", 12.5)
	tr.SetEncodeFPS(24)
	tr.SetActiveSessions(2)
	tr.IncSnapshots()
	tr.AddFrame(1024)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		`camstream_stream_fps{client="10.0.0.5:4000"} 12.5`,
		"camstream_stream_fps_average 12.5",
		"camstream_encoder_fps 24",
		"camstream_sessions_active 2",
		"camstream_snapshots_total 1",
		"camstream_stream_frames_total 1",
		"camstream_stream_bytes_total 1024",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}

	tr.Reset()
	w = httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)
	if strings.Contains(w.Body.String(), `client="10.0.0.5:4000"`) {
		t.Error("per-client series survived Reset")
	}
}

func TestNewRegistryHasRuntimeCollectors(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Error("go collector not registered")
	}
}
