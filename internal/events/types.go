package events

// Event type identifiers for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionEnded
	TypeGateChanged
	TypeSnapshot
	TypeLogEntry
)

// Event is the interface kelindar/event dispatches on.
type Event interface {
	Type() uint32
}

// Session kinds.
const (
	KindStream   = "stream"
	KindSnapshot = "snapshot"
)

// SessionStartedEvent is published when a stream session sends its preamble.
type SessionStartedEvent struct {
	Client    string  `json:"client" example:"192.168.1.20:53122" doc:"Client identity"`
	Kind      string  `json:"kind" example:"stream" doc:"Session kind"`
	Rotate    float64 `json:"rotate" example:"-1" doc:"Rotation in degrees, -1 for none"`
	ShowFPS   bool    `json:"show_fps" doc:"Whether the FPS overlay is drawn"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionEndedEvent is published when a stream session leaves its loop.
type SessionEndedEvent struct {
	Client    string  `json:"client" example:"192.168.1.20:53122" doc:"Client identity"`
	Kind      string  `json:"kind" example:"stream" doc:"Session kind"`
	Frames    int64   `json:"frames" example:"1200" doc:"Frames written"`
	Bytes     int64   `json:"bytes" example:"48000000" doc:"JPEG bytes written"`
	Duration  float64 `json:"duration" example:"120.5" doc:"Session length in seconds"`
	Reason    string  `json:"reason" example:"disconnect" doc:"Why the session ended"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:32:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionEndedEvent.
func (e SessionEndedEvent) Type() uint32 { return TypeSessionEnded }

// GateChangedEvent is published on every open/close transition of the encoder gate.
type GateChangedEvent struct {
	Open      bool   `json:"open" doc:"Whether frame production is running"`
	Sessions  int    `json:"sessions" example:"1" doc:"Active sessions after the transition"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for GateChangedEvent.
func (e GateChangedEvent) Type() uint32 { return TypeGateChanged }

// SnapshotEvent is published for each served snapshot.
type SnapshotEvent struct {
	Client    string `json:"client" example:"192.168.1.20:53122" doc:"Client identity"`
	Bytes     int    `json:"bytes" example:"40960" doc:"JPEG size"`
	Total     int64  `json:"total" example:"12" doc:"Snapshots served since start"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SnapshotEvent.
func (e SnapshotEvent) Type() uint32 { return TypeSnapshot }

// LogEntryEvent carries one log line to SSE clients.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-27T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"streaming" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
