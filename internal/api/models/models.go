// Package models holds the request and response bodies of the HTTP API.
package models

import "github.com/smazurov/camstream/internal/streaming"

// Health check models
type HealthData struct {
	Status   string `json:"status" example:"ok" doc:"Service status"`
	Message  string `json:"message" example:"camstream is healthy" doc:"Status message"`
	Running  bool   `json:"running" doc:"False once shutdown has begun"`
	HasFrame bool   `json:"has_frame" doc:"Whether a frame has been produced yet"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Stats models
type StatsResponse struct {
	Body streaming.Info
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" default:"100" minimum:"0" maximum:"1000" doc:"Maximum entries to return, newest last"`
	Module string `query:"module" example:"streaming" doc:"Only entries from this module"`
}

type LogEntry struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-27T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"streaming" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

type LogsData struct {
	Entries []LogEntry `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int        `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
