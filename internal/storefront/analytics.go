package storefront

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/adgen/adgen/internal/idgen"
	"github.com/adgen/adgen/internal/state"
)

// handleEvents ingests a batch of storefront interaction events. Storage
// failures are logged and still acknowledged so the browser never retries.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	body, err := decodeBody(r.Body)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "")
		return
	}
	raw, _ := body["events"].([]any)
	rows := make([]state.EventRow, 0, len(raw))
	for _, item := range raw {
		e, _ := item.(map[string]any)
		if e == nil {
			e = map[string]any{}
		}
		rows = append(rows, state.EventRow{
			EventID:       idgen.AnalyticsEventID(s.now()),
			SessionID:     str(e["sessionId"], "unknown"),
			UserID:        str(e["userId"], "anonymous"),
			EventName:     str(e["event"], "unknown"),
			EventTime:     s.eventTime(str(e["ts"], "")),
			PathName:      str(e["pathname"], ""),
			Payload:       payloadJSON(e["payload"]),
			EventLocation: str(e["eventLocation"], ""),
		})
	}
	if len(rows) > 0 {
		s.Log.Debug().Int("count", len(rows)).Msg("storing events")
		if err := s.Store.InsertEvents(r.Context(), rows); err != nil {
			s.Log.Error().Err(err).Msg("insert events")
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	body, err := decodeBody(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	products, err := productsPayload(body["products_payload"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	var cents float64
	switch v := body["paid_amount"].(type) {
	case json.Number:
		cents, _ = v.Float64()
	case string:
		cents, _ = json.Number(strings.TrimSpace(v)).Float64()
	}

	row := state.OrderRow{
		OrderID:         str(body["order_id"], ""),
		UserID:          str(body["user_id"], "anonymous"),
		SessionID:       str(body["session_id"], "unknown"),
		ProductsPayload: products,
		PaidAmount:      cents / 100,
		OrderDate:       s.orderTime(str(body["order_date"], "")),
		SessionLocation: str(body["session_location"], ""),
	}
	if row.OrderID == "" {
		row.OrderID = idgen.OrderID(s.now())
	}
	if err := s.Store.InsertOrder(r.Context(), row); err != nil {
		s.Log.Error().Err(err).Str("order_id", row.OrderID).Msg("insert order")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.Log.Info().Str("order_id", row.OrderID).Float64("paid_amount", row.PaidAmount).Msg("order stored")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order_id": row.OrderID})
}

// eventTime turns the browser's local "YYYY-MM-DDTHH:MM:SS" into the
// analytics DATETIME form, defaulting to the server's local now.
func (s *Server) eventTime(ts string) string {
	if strings.Contains(ts, "T") {
		return strings.Replace(ts, "T", " ", 1)
	}
	return s.now().Format(bqTimeLayout)
}

// orderTime truncates an ISO timestamp to seconds.
func (s *Server) orderTime(ts string) string {
	if strings.Contains(ts, "T") {
		if len(ts) > 19 {
			ts = ts[:19]
		}
		return strings.Replace(ts, "T", " ", 1)
	}
	return s.now().Format(bqTimeLayout)
}

func payloadJSON(v any) string {
	if v == nil {
		return "{}"
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// productsPayload accepts either an object or a JSON string holding one.
func productsPayload(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "{}", nil
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(t), &decoded); err != nil {
			return "", errors.New("products_payload is not valid JSON")
		}
		out, err := json.Marshal(decoded)
		return string(out), err
	default:
		out, err := json.Marshal(t)
		return string(out), err
	}
}
