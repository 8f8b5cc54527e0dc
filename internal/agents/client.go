package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	SegmentationPrompt = "Do your segmentation task. Process pending users and return appropriate status."
	DefaultMaxRounds   = 8

	DefaultStartTimeout = 30 * time.Second
	DefaultTeamTimeout  = 10 * time.Minute

	userAgent = "AdGen-WebApp/1.0"
)

// Client forwards dashboard actions to the external agent service.
type Client struct {
	HTTP         *http.Client
	Log          zerolog.Logger
	StartTimeout time.Duration
	TeamTimeout  time.Duration
	Now          func() time.Time
}

type Target struct {
	URL      string
	APIToken string
}

type RunResult struct {
	RunID     string `json:"runId"`
	Forwarded bool   `json:"forwarded"`
	Result    any    `json:"result,omitempty"`
	AgentsURL string `json:"agentsUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

type TeamResult struct {
	OK        bool   `json:"ok"`
	Status    int    `json:"status"`
	Response  any    `json:"response"`
	Timestamp string `json:"timestamp"`
}

// TeamError describes a team trigger that never got a response.
type TeamError struct {
	OK         bool   `json:"ok"`
	Message    string `json:"error"`
	ErrorType  string `json:"errorType"`
	Timestamp  string `json:"timestamp"`
	Suggestion string `json:"suggestion"`
	cause      error
}

func (e *TeamError) Error() string { return e.Message }
func (e *TeamError) Unwrap() error { return e.cause }

// StartRun asks the agent service to start the segmentation workflow for
// runID. Failures are reported in the result, never as an error, so the
// caller can always hand the run id back to the dashboard.
func (c *Client) StartRun(ctx context.Context, target Target, runID string) RunResult {
	log := c.Log.With().Str("run_id", runID).Str("agents_url", target.URL).Logger()
	log.Info().Msg("forwarding run to agents service")

	ctx, cancel := context.WithTimeout(ctx, orDefault(c.StartTimeout, DefaultStartTimeout))
	defer cancel()

	body, _ := json.Marshal(map[string]any{
		"prompt":     SegmentationPrompt,
		"max_rounds": DefaultMaxRounds,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return RunResult{RunID: runID, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Run-Id", runID)
	if target.APIToken != "" {
		req.Header.Set("X-Api-Key", target.APIToken)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		log.Error().Err(err).Msg("forward run failed")
		return RunResult{RunID: runID, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("status", resp.StatusCode).Msg("agents service rejected run")
		return RunResult{RunID: runID, Error: fmt.Sprintf("Agents service error: %d", resp.StatusCode)}
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		data = map[string]any{}
	}
	log.Info().Msg("agent run initiated")
	return RunResult{RunID: runID, Forwarded: true, Result: data, AgentsURL: target.URL}
}

// RunTeam triggers one pass of the whole agent team. The call is long
// running; the team endpoint may take minutes to answer.
func (c *Client) RunTeam(ctx context.Context, url string) (TeamResult, error) {
	c.Log.Info().Str("target", url).Msg("starting agent team execution")

	ctx, cancel := context.WithTimeout(ctx, orDefault(c.TeamTimeout, DefaultTeamTimeout))
	defer cancel()

	body, _ := json.Marshal(map[string]any{
		"source":    "adgen-webapp",
		"timestamp": c.timestamp(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return TeamResult{}, c.teamError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Log.Error().Err(err).Msg("agent team request failed")
		return TeamResult{}, c.teamError(err)
	}
	defer resp.Body.Close()

	var response any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			c.Log.Warn().Err(err).Msg("failed to parse team JSON response")
			response = map[string]any{"error": "Invalid JSON response"}
		}
	} else {
		text, err := io.ReadAll(resp.Body)
		if err != nil {
			return TeamResult{}, c.teamError(err)
		}
		msg := string(text)
		if msg == "" {
			msg = "No response body"
		}
		response = map[string]any{"message": msg}
	}

	c.Log.Info().Int("status", resp.StatusCode).Msg("agent team responded")
	return TeamResult{
		OK:        resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Status:    resp.StatusCode,
		Response:  response,
		Timestamp: c.timestamp(),
	}, nil
}

func (c *Client) teamError(err error) *TeamError {
	te := &TeamError{
		Message:   err.Error(),
		ErrorType: "UnknownError",
		Timestamp: c.timestamp(),
		cause:     err,
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		te.ErrorType = "TimeoutError"
		te.Message = "Request timed out - the agent service may be taking longer than expected to respond"
	case errors.As(err, &netErr):
		te.ErrorType = "NetworkError"
		te.Message = "Network error - unable to connect to the agent service"
	}
	if te.ErrorType == "TimeoutError" {
		te.Suggestion = "The agent service is running but taking longer than expected. This is normal for complex agent operations."
	} else {
		te.Suggestion = "Please check if the agent service is running and accessible."
	}
	return te
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) timestamp() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().UTC().Format(time.RFC3339Nano)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
