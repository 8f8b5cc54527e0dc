package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/adgen/adgen/internal/eventbus"
	"github.com/adgen/adgen/internal/state"
)

type DiagnosticsInfo struct {
	HTTPAddr string `json:"http_addr"`
	DataDir  string `json:"data_dir"`
	DBPath   string `json:"db_path"`
	WebDir   string `json:"web_dir"`
	Env      string `json:"env"`
}

type DiagnosticsResponse struct {
	Time             time.Time       `json:"time"`
	StartedAt        time.Time       `json:"started_at"`
	UptimeSeconds    int64           `json:"uptime_seconds"`
	GoVersion        string          `json:"go_version"`
	AgentsConfigured bool            `json:"agents_configured"`
	Info             DiagnosticsInfo `json:"info"`
	EventBus         eventbus.Stats  `json:"eventbus"`
	Analytics        *state.Counts   `json:"analytics,omitempty"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	now := time.Now().UTC()
	started := s.StartedAt
	if started.IsZero() {
		started = now
	}
	d := s.dynamic()
	resp := DiagnosticsResponse{
		Time:             now,
		StartedAt:        started,
		UptimeSeconds:    int64(now.Sub(started).Seconds()),
		GoVersion:        runtime.Version(),
		AgentsConfigured: d.AgentsURL != "" && d.TeamURL != "",
		Info:             s.Info,
	}
	if s.Broker != nil {
		resp.EventBus = s.Broker.Stats()
	}
	if s.Store != nil {
		counts, err := s.Store.CountAnalytics(r.Context())
		if err != nil {
			s.Log.Warn().Err(err).Msg("diagnostics: count analytics")
		} else {
			resp.Analytics = &counts
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
