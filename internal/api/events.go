package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/metrics"
	"github.com/smazurov/rogd/internal/version"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		s.logger.Debug("No event bus, skipping SSE route")
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time notifications for LED, fan, charge and BIOS changes",
		Tags:        []string{"events"},
	}, map[string]any{
		"connected":            events.ConnectedEvent{},
		"led-mode-changed":     events.LEDModeChangedEvent{},
		"brightness-changed":   events.BrightnessChangedEvent{},
		"fan-level-changed":    events.FanLevelChangedEvent{},
		"charge-limit-changed": events.ChargeLimitChangedEvent{},
		"gfx-mode-changed":     events.GfxModeChangedEvent{},
		"post-sound-changed":   events.PostSoundChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)
		unsubscribe := events.SubscribeAll(s.eventBus, eventCh, func(e events.Event) {
			metrics.IncNotificationDropped("sse")
			s.logger.Debug("SSE client too slow, notification dropped", "type", e.Type())
		})
		defer unsubscribe()

		// Send initial connection confirmation
		if err := send.Data(events.ConnectedEvent{
			Message:   "SSE connection established",
			Version:   version.Get().Version,
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
