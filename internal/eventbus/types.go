package eventbus

// Event is one progress update of a run as delivered to pollers and live
// subscribers. Timestamp and ReceivedAt are unix milliseconds.
type Event struct {
	ID         string         `json:"id"`
	Agent      string         `json:"agent"`
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	Step       any            `json:"step"`
	Meta       map[string]any `json:"meta,omitempty"`
	Timestamp  int64          `json:"timestamp"`
	ReceivedAt int64          `json:"receivedAt"`
}

type EventInput struct {
	RunID     string
	Agent     string
	Status    string
	Message   string
	Step      any // string, number or nil
	Meta      map[string]any
	Timestamp int64 // defaults to the receive time when <= 0
}

type Stats struct {
	Runs        int `json:"runs"`
	Events      int `json:"events"`
	Subscribers int `json:"subscribers"`
}
