package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/smazurov/camstream/internal/streaming"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFF, 0xD9}

func fakeDaemon(t *testing.T, frameReady bool) (*httptest.Server, <-chan string) {
	t.Helper()
	queries := make(chan string, 8)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		if !strings.HasPrefix(r.UserAgent(), "camstream/") {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		switch {
		case strings.HasPrefix(r.URL.RawQuery, "info"):
			info := streaming.Info{
				Stats:  streaming.Stats{Hostname: "cam1", ActiveSessions: 2, Running: true},
				Config: streaming.DefaultConfig(),
			}
			_ = json.NewEncoder(w).Encode(info)
		case strings.HasPrefix(r.URL.RawQuery, "snapshot"):
			if !frameReady {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooEarly)
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpegBytes)
		case strings.HasPrefix(r.URL.RawQuery, "shutdown"):
			_, _ = w.Write([]byte("<p>shutting down</p>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts, queries
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInfoCmd(t *testing.T) {
	ts, queries := fakeDaemon(t, true)

	out, err := run(t, CreateInfoCmd(), "--url", ts.URL)
	if err != nil {
		t.Fatal(err)
	}

	var info streaming.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Stats.Hostname != "cam1" || info.Stats.ActiveSessions != 2 {
		t.Errorf("stats = %+v", info.Stats)
	}
	if q := <-queries; q != "info" {
		t.Errorf("query = %q, want info", q)
	}
}

func TestSnapshotCmd(t *testing.T) {
	tests := []struct {
		name      string
		ready     bool
		args      []string
		wantQuery string
		wantErr   string
	}{
		{name: "default", ready: true, wantQuery: "snapshot"},
		{name: "rotate", ready: true, args: []string{"--rotate", "90"}, wantQuery: "snapshot&rotate=90"},
		{name: "zero rotate is sent when set", ready: true, args: []string{"--rotate", "0"}, wantQuery: "snapshot&rotate=0"},
		{name: "no frame yet", ready: false, wantQuery: "snapshot", wantErr: "no frame available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, queries := fakeDaemon(t, tt.ready)
			path := filepath.Join(t.TempDir(), "frame.jpg")

			args := append([]string{"--url", ts.URL, "--out", path}, tt.args...)
			_, err := run(t, CreateSnapshotCmd(), args...)

			if got := <-queries; got != tt.wantQuery {
				t.Errorf("query = %q, want %q", got, tt.wantQuery)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				if _, statErr := os.Stat(path); statErr == nil {
					t.Error("file written despite error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, jpegBytes) {
				t.Errorf("file = %x, want %x", data, jpegBytes)
			}
		})
	}
}

func TestSnapshotToStdout(t *testing.T) {
	ts, _ := fakeDaemon(t, true)

	out, err := run(t, CreateSnapshotCmd(), "--url", ts.URL, "--out", "-")
	if err != nil {
		t.Fatal(err)
	}
	if out != string(jpegBytes) {
		t.Errorf("stdout = %x", out)
	}
}

func TestShutdownCmd(t *testing.T) {
	ts, queries := fakeDaemon(t, true)

	if _, err := run(t, CreateShutdownCmd(), "--url", ts.URL+"/"); err != nil {
		t.Fatal(err)
	}
	if q := <-queries; q != "shutdown" {
		t.Errorf("query = %q, want shutdown", q)
	}
}

func TestRemoteUnreachable(t *testing.T) {
	ts, _ := fakeDaemon(t, true)
	url := ts.URL
	ts.Close()

	if _, err := run(t, CreateInfoCmd(), "--url", url, "--timeout", "1s"); err == nil {
		t.Fatal("expected error for closed daemon")
	}
}
