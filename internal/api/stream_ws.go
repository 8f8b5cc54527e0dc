package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/adgen/adgen/internal/eventbus"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

func (s *Server) handleAgentEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.Broker == nil {
		writeError(w, http.StatusInternalServerError, errors.New("event broker unavailable"))
		return
	}
	runID := r.URL.Query().Get("runId")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "runId is required"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	// Reads are not expected; CloseRead cancels ctx once the peer hangs up.
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, s.Broker, runID, conn); err != nil {
		if ctx.Err() == nil {
			s.Log.Debug().Err(err).Str("run_id", runID).Msg("websocket stream ended")
		}
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

// streamEvents writes the replay and then the live events of runID.
func streamEvents(ctx context.Context, broker *eventbus.Broker, runID string, writer wsWriter) error {
	replay, live := broker.Subscribe(ctx, runID)
	for _, evt := range replay {
		if err := writeWS(ctx, writer, evt); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-live:
			if !ok {
				return nil
			}
			if err := writeWS(ctx, writer, evt); err != nil {
				return err
			}
		}
	}
}

func writeWS(ctx context.Context, writer wsWriter, evt eventbus.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return writer.Write(ctx, websocket.MessageText, payload)
}
