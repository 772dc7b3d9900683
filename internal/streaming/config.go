package streaming

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/smazurov/camstream/internal/render"
)

// MaxEncodeWait is the longest accepted inter-frame wait, in seconds.
const MaxEncodeWait = 3600.0

// Config is the immutable per-run server configuration. It is reported
// verbatim under "config" in /?info.
type Config struct {
	Bind           string  `json:"bind" example:"" doc:"Bind address, empty for all interfaces"`
	Port           int     `json:"port" example:"8080" doc:"Listen port"`
	IPVersion      int     `json:"ip_version" example:"4" doc:"Listener address family, 4 or 6"`
	Rotate         float64 `json:"rotate" example:"-1" doc:"Default rotation in degrees, -1 for none"`
	ShowFPS        bool    `json:"show_fps" doc:"Draw the FPS overlay on streams by default"`
	EncodeWait     float64 `json:"encode_wait" example:"0.05" doc:"Seconds between stream frames at startup"`
	JPEGQuality    int     `json:"jpeg_quality" example:"80" doc:"JPEG quality 1-100"`
	HTTPLog        bool    `json:"http_log" doc:"Log every HTTP request"`
	ResolveClients bool    `json:"resolve_clients" doc:"Reverse-resolve client addresses"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Port:        8080,
		IPVersion:   4,
		Rotate:      render.NoRotation,
		EncodeWait:  0.05,
		JPEGQuality: render.DefaultQuality,
	}
}

// Validate checks the fields that would otherwise fail late.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.IPVersion != 4 && c.IPVersion != 6 {
		return fmt.Errorf("invalid ip version %d, must be 4 or 6", c.IPVersion)
	}
	if !validEncodeWait(c.EncodeWait) {
		return fmt.Errorf("invalid encode wait %v, must be between 0 and %v seconds", c.EncodeWait, MaxEncodeWait)
	}
	if !validRotate(c.Rotate) {
		return fmt.Errorf("invalid rotate %v", c.Rotate)
	}
	if c.Bind != "" && net.ParseIP(c.Bind) == nil && c.Bind != "localhost" {
		return fmt.Errorf("invalid bind address %q", c.Bind)
	}
	return nil
}

// Network returns the listener network for the configured address family.
func (c Config) Network() string {
	if c.IPVersion == 6 {
		return "tcp6"
	}
	return "tcp4"
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c Config) frameWait() time.Duration {
	return secondsToDuration(c.EncodeWait)
}

// validEncodeWait rejects NaN, infinities and values that would overflow a
// time.Duration.
func validEncodeWait(secs float64) bool {
	return secs >= 0 && secs <= MaxEncodeWait
}

func validRotate(deg float64) bool {
	return !math.IsNaN(deg) && !math.IsInf(deg, 0)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
