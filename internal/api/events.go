package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camstream/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session, snapshot and encoder gate events",
		Tags:        []string{"events"},
	}, map[string]any{
		"session-started": events.SessionStartedEvent{},
		"session-ended":   events.SessionEndedEvent{},
		"gate-changed":    events.GateChangedEvent{},
		"snapshot":        events.SnapshotEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.eventBus == nil {
			return
		}
		eventCh := make(chan events.Event, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SessionStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionEndedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.GateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SnapshotEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

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
