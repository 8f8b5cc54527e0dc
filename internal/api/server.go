package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adgen/adgen/internal/agents"
	"github.com/adgen/adgen/internal/config"
	"github.com/adgen/adgen/internal/eventbus"
	"github.com/adgen/adgen/internal/idgen"
	"github.com/adgen/adgen/internal/seed"
	"github.com/adgen/adgen/internal/state"
)

const DefaultHeartbeatInterval = 15 * time.Second

// Seeder runs the synthetic data generator for /api/seedmega.
type Seeder interface {
	Run(ctx context.Context, p seed.Params) (seed.Report, error)
}

type Server struct {
	Broker     *eventbus.Broker
	Store      *state.Store
	Agents     *agents.Client
	Seeder     Seeder
	Live       *config.Live
	Production bool
	Log        zerolog.Logger
	StartedAt  time.Time
	Info       DiagnosticsInfo

	// HeartbeatInterval spaces the ": ping" comments on SSE streams.
	HeartbeatInterval time.Duration
}

var errStoreUnavailable = errors.New("document store unavailable")

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/api/agent-events", s.handleAgentEvents)
	mux.HandleFunc("/api/agent-events/ws", s.handleAgentEventsWS)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/run-team", s.handleRunTeam)
	mux.HandleFunc("/api/instructions", s.handleInstructions)
	mux.HandleFunc("/api/instructions/", s.handleInstructionDoc)
	mux.HandleFunc("/api/segmentations", s.handleSegmentations)
	mux.HandleFunc("/api/seedmega", s.handleSeedMega)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) dynamic() config.Dynamic {
	if s.Live == nil {
		return config.Dynamic{}
	}
	return s.Live.Get()
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	d := s.dynamic()
	runID := idgen.RunID(time.Now())
	s.Log.Info().Str("run_id", runID).Str("agents_url", d.AgentsURL).Msg("starting agent run")
	result := s.agentsClient().StartRun(r.Context(), agents.Target{URL: d.AgentsURL, APIToken: d.AgentsAPIToken}, runID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRunTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	result, err := s.agentsClient().RunTeam(r.Context(), s.dynamic().TeamURL)
	if err != nil {
		var teamErr *agents.TeamError
		if errors.As(err, &teamErr) {
			writeJSON(w, http.StatusInternalServerError, teamErr)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSeedMega(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var params seed.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if s.Seeder == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "seeder not configured"})
		return
	}
	report, err := s.Seeder.Run(r.Context(), params)
	if err != nil {
		s.Log.Error().Err(err).Msg("seed run failed")
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"code":    1,
			"output":  report.Output + err.Error() + "\n",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "code": 0, "output": report.Output})
}

func (s *Server) agentsClient() *agents.Client {
	if s.Agents != nil {
		return s.Agents
	}
	return &agents.Client{Log: s.Log}
}

func decodeJSON(body io.Reader, dest any) error {
	return json.NewDecoder(body).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
