package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camview/internal/events"
)

// registerSSERoutes registers the lifecycle event stream
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time player lifecycle, failure and sweep events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"stream-started": events.StreamStartedEvent{},
		"stream-running": events.StreamRunningEvent{},
		"stream-stopped": events.StreamStoppedEvent{},
		"stream-exited":  events.StreamExitedEvent{},
		"stream-failed":  events.StreamFailedEvent{},
		"sweep":          events.SweepEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StreamStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamRunningEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStoppedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamExitedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SweepEvent](s.eventBus, eventCh),
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
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
