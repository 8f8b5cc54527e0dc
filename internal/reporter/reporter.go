package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout    = 5 * time.Second
	DefaultRatePerSec = 20

	userAgent = "AdGen-Agents/1.0"
)

// Progress is one status update sent by an agent process.
type Progress struct {
	RunID     string         `json:"runId"`
	Agent     string         `json:"agent"`
	Status    string         `json:"status"`
	Message   string         `json:"message"`
	Step      any            `json:"step"`
	Meta      map[string]any `json:"meta"`
	Timestamp int64          `json:"timestamp"`
}

// Reporter posts progress events to the control panel webhook. Delivery is
// best effort; Report never returns an error, only whether it succeeded.
type Reporter struct {
	URL     string
	Secret  string
	HTTP    *http.Client
	Log     zerolog.Logger
	Timeout time.Duration
	Now     func() time.Time

	limiter *rate.Limiter
}

func New(url, secret string, ratePerSec int, log zerolog.Logger) *Reporter {
	if ratePerSec <= 0 {
		ratePerSec = DefaultRatePerSec
	}
	return &Reporter{
		URL:     url,
		Secret:  secret,
		Log:     log,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func (r *Reporter) Report(ctx context.Context, p Progress) bool {
	if p.Timestamp == 0 {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		p.Timestamp = now().UnixMilli()
	}
	log := r.Log.With().Str("run_id", p.RunID).Str("agent", p.Agent).Str("status", p.Status).Logger()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("webhook skipped")
			return false
		}
	}

	if err := r.post(ctx, p); err != nil {
		log.Warn().Err(err).Msg("webhook delivery failed")
		return false
	}
	log.Debug().Msg("webhook delivered")
	return true
}

func (r *Reporter) post(ctx context.Context, p Progress) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-webhook-secret", r.Secret)
	req.Header.Set("User-Agent", userAgent)

	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
