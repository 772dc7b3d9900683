package streaming

import (
	"encoding/json"
	"io"
	"net/http"
)

// Stats is the live part of /?info.
type Stats struct {
	Hostname       string             `json:"hostname" example:"camhost" doc:"Host name of the daemon"`
	EncodeFPS      float64            `json:"encode_fps" example:"15" doc:"Frames per second written by the frame source"`
	ActiveSessions int                `json:"active_sessions" example:"2" doc:"Stream and snapshot sessions holding the encoder gate"`
	AverageFPS     float64            `json:"avg_fps" example:"14.8" doc:"Mean FPS across stream clients"`
	Sessions       map[string]float64 `json:"sessions" doc:"Rolling FPS per stream client"`
	Snapshots      int64              `json:"snapshots" example:"12" doc:"Snapshots served since start"`
	EncodeWait     float64            `json:"encode_wait" example:"0.05" doc:"Live seconds between stream frames"`
	Running        bool               `json:"running" doc:"False once shutdown has begun"`
}

// Info is the /?info document.
type Info struct {
	Stats  Stats  `json:"stats"`
	Config Config `json:"config"`
}

// Stats returns a snapshot of the live statistics.
func (s *Server) Stats() Stats {
	return Stats{
		Hostname:       s.hostname,
		EncodeFPS:      s.tracker.EncodeFPS(),
		ActiveSessions: s.gate.Sessions(),
		AverageFPS:     s.tracker.Average(),
		Sessions:       s.tracker.Sessions(),
		Snapshots:      s.tracker.Snapshots(),
		EncodeWait:     s.FrameWait().Seconds(),
		Running:        s.Running(),
	}
}

func (s *Server) serveInfo(w http.ResponseWriter, _ *http.Request) {
	info := Info{Stats: s.Stats(), Config: s.cfg}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		s.logger.Debug("Info write failed", "error", err)
	}
}

func (s *Server) serveShutdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, shutdownPage)
	_ = http.NewResponseController(w).Flush()

	s.logger.Info("Shutdown endpoint called", "client", s.clientID(r))
	s.RequestShutdown()
}

func (s *Server) serveIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, indexPage)
}

const loadingPage = `<!DOCTYPE html>
<html>
<head><meta http-equiv="refresh" content="1"><title>camstream</title></head>
<body><p>Camera is starting, retrying shortly&hellip;</p></body>
</html>
`

const shutdownPage = `<!DOCTYPE html>
<html>
<head><title>camstream</title></head>
<body><p>camstream is shutting down.</p></body>
</html>
`

const indexPage = `<!DOCTYPE html>
<html>
<head><title>camstream</title></head>
<body>
<h1>Not found</h1>
<ul>
<li><a href="/?stream">/?stream</a></li>
<li><a href="/?snapshot">/?snapshot</a></li>
<li><a href="/?info">/?info</a></li>
<li><a href="/viewer/">/viewer/</a></li>
</ul>
</body>
</html>
`
