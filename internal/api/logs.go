package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camstream/internal/api/models"
	"github.com/smazurov/camstream/internal/events"
	"github.com/smazurov/camstream/internal/logging"
)

// registerLogRoutes registers the buffered log endpoint and the log stream.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Entries from the in-memory log ring buffer",
		Tags:        []string{"logs"},
	}, func(_ context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		var entries []models.LogEntry
		for _, entry := range logging.GetBuffer().Recent(0) {
			if input.Module != "" && entry.Module != input.Module {
				continue
			}
			entries = append(entries, toModel(entry))
		}
		if input.Limit > 0 && len(entries) > input.Limit {
			entries = entries[len(entries)-input.Limit:]
		}
		if entries == nil {
			entries = []models.LogEntry{}
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	// Sends the buffered history first, then live entries.
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends historical logs first, then streams new logs.",
		Tags:        []string{"logs"},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan events.Event, 100)
		if s.eventBus != nil {
			unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
			defer unsubscribe()
		}

		for _, entry := range logging.GetBuffer().Recent(0) {
			if err := send.Data(LogEvent(entry)); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// LogEvent converts a buffered log entry into its bus event.
func LogEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

func toModel(entry logging.LogEntry) models.LogEntry {
	return models.LogEntry{
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
