package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/events"
	"github.com/retailpulse/pulse/internal/modules/dashboard"
)

// EventsStreamHandler streams system events over Server-Sent Events. An open
// stream is what marks the dashboard as "being watched": connecting activates
// the lifecycle, disconnecting releases it.
type EventsStreamHandler struct {
	bus       *events.Bus
	dashboard *dashboard.Service
	log       zerolog.Logger
}

// NewEventsStreamHandler creates the SSE stream handler.
func NewEventsStreamHandler(bus *events.Bus, svc *dashboard.Service, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:       bus,
		dashboard: svc,
		log:       log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Optional comma-separated type filter, e.g. ?types=SNAPSHOT_REFRESHED
	var allowedTypes map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	// The stream is a consumer: heavy resources come up for it and are torn
	// down (after the grace period) when it goes away.
	if err := h.dashboard.Activate(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to activate dashboard for stream")
		http.Error(w, "Dashboard unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.dashboard.Deactivate()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	h.log.Info().Msg("Client connected to event stream")

	// Buffer so a slow client drops events instead of blocking publishers.
	eventChan := make(chan events.Event, 100)
	unsubscribe := h.bus.SubscribeAll(func(event events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	})
	defer unsubscribe()

	done := r.Context().Done()

	fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encode(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) encode(body map[string]interface{}) string {
	data, err := json.Marshal(body)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal stream message")
		return `{"error":"failed to encode message"}`
	}
	return string(data)
}
