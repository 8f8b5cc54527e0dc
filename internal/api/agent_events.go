package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/adgen/adgen/internal/eventbus"
)

type agentEventPayload struct {
	RunID     string         `json:"runId"`
	Agent     string         `json:"agent"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Step      any            `json:"step"`
	Meta      map[string]any `json:"meta"`
	Timestamp float64        `json:"timestamp"`
}

func (s *Server) handleAgentEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAgentEventWebhook(w, r)
	case http.MethodGet:
		runID := r.URL.Query().Get("runId")
		if runID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "runId is required"})
			return
		}
		if r.URL.Query().Get("sse") == "1" {
			s.streamAgentEvents(w, r, runID)
			return
		}
		since := parseInt64(r.URL.Query().Get("since"), 0)
		items, total := s.Broker.Events(runID, since)
		if items == nil {
			items = []eventbus.Event{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleAgentEventWebhook(w http.ResponseWriter, r *http.Request) {
	secret := s.dynamic().WebhookSecret
	got := r.Header.Get("X-Webhook-Secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		s.Log.Warn().Str("remote", r.RemoteAddr).Msg("agent event rejected: bad webhook secret")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	var payload agentEventPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		s.Log.Error().Err(err).Msg("agent event decode failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	evt, err := s.Broker.Publish(eventbus.EventInput{
		RunID:     payload.RunID,
		Agent:     payload.Agent,
		Status:    payload.Status,
		Message:   payload.Message,
		Step:      payload.Step,
		Meta:      payload.Meta,
		Timestamp: int64(payload.Timestamp),
	})
	if errors.Is(err, eventbus.ErrMissingFields) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing required fields"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
		return
	}
	s.Log.Debug().Str("run_id", payload.RunID).Str("agent", evt.Agent).Str("status", evt.Status).Msg("agent event")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// streamAgentEvents replays recent history and then relays live events for
// one run until the client goes away.
func (s *Server) streamAgentEvents(w http.ResponseWriter, r *http.Request, runID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	replay, live := s.Broker.Subscribe(ctx, runID)
	log := s.Log.With().Str("run_id", runID).Logger()
	log.Debug().Int("replay", len(replay)).Msg("sse subscriber connected")
	defer log.Debug().Msg("sse subscriber disconnected")

	for _, evt := range replay {
		if err := writeSSE(w, evt); err != nil {
			return
		}
	}
	flusher.Flush()

	interval := s.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-live:
			if !ok {
				return
			}
			if err := writeSSE(w, evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt eventbus.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(payload)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, payload...)
	buf = append(buf, "\n\n"...)
	_, err = w.Write(buf)
	return err
}
