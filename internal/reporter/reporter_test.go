package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestReportPostsProgress(t *testing.T) {
	var got Progress
	var secret, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Webhook-Secret")
		ua = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rep := New(srv.URL, "s3cret", 0, zerolog.Nop())
	rep.Now = func() time.Time { return time.UnixMilli(1234) }
	ok := rep.Report(context.Background(), Progress{RunID: "run-1", Agent: "MasterAgent", Status: "started", Step: "plan"})
	if !ok {
		t.Fatalf("expected delivery")
	}
	if secret != "s3cret" || ua != userAgent {
		t.Fatalf("unexpected headers secret=%q ua=%q", secret, ua)
	}
	if got.RunID != "run-1" || got.Timestamp != 1234 || got.Step != "plan" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestReportFailsSoftly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rep := New(srv.URL, "wrong", 0, zerolog.Nop())
	if rep.Report(context.Background(), Progress{RunID: "r", Agent: "a", Status: "s"}) {
		t.Fatalf("expected failure on 401")
	}

	srv.Close()
	if rep.Report(context.Background(), Progress{RunID: "r", Agent: "a", Status: "s"}) {
		t.Fatalf("expected failure on closed server")
	}
}

func TestReportHonoursCancelledContext(t *testing.T) {
	rep := New("http://127.0.0.1:0", "s", 1, zerolog.Nop())
	// drain the single burst token so the next call must wait
	rep.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if rep.Report(ctx, Progress{RunID: "r", Agent: "a", Status: "s"}) {
		t.Fatalf("expected cancelled report to fail")
	}
}
