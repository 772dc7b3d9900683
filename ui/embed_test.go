package ui

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestViewerAssets(t *testing.T) {
	mux := http.NewServeMux()
	if err := Mount(mux); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path     string
		wantType string
		contains string
	}{
		{path: "/viewer/", wantType: "text/html", contains: `src="/?stream"`},
		{path: "/viewer/viewer.js", wantType: "javascript", contains: "/api/stats"},
		{path: "/viewer/viewer.css", wantType: "text/css", contains: "#stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			body, _ := io.ReadAll(rec.Body)
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body missing %q", tt.contains)
			}
		})
	}
}

func TestViewerMissingAsset(t *testing.T) {
	mux := http.NewServeMux()
	if err := Mount(mux); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/viewer/nope.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
