// Command adgenctl talks to a running control panel: it reports agent
// progress, starts runs, tails a run's event stream and seeds demo data.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/adgen/adgen/internal/config"
	"github.com/adgen/adgen/internal/eventbus"
	"github.com/adgen/adgen/internal/logx"
	"github.com/adgen/adgen/internal/reporter"
	"github.com/adgen/adgen/internal/seed"
	"github.com/adgen/adgen/internal/state"
)

const usage = `usage: adgenctl <command> [flags]

commands:
  report   post one progress event to the control panel webhook
  run      start an agents run through the control panel
  tail     stream a run's events over websocket
  seed     write demo users, sessions, events and orders to a database
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	log := logx.New(logx.Config{Level: os.Getenv("LOG_LEVEL"), Format: "console"}, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "report":
		err = runReport(ctx, args, log)
	case "run":
		err = runStart(ctx, args)
	case "tail":
		err = runTail(ctx, args)
	case "seed":
		err = runSeed(ctx, args, log)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg(os.Args[1])
		os.Exit(1)
	}
}

func runReport(ctx context.Context, args []string, log zerolog.Logger) error {
	fs := pflag.NewFlagSet("report", pflag.ExitOnError)
	target := fs.String("url", "http://localhost:8080/api/agent-events", "webhook URL")
	secret := fs.String("secret", envOr("WEBHOOK_SECRET", config.DefaultWebhookSecret), "shared webhook secret")
	runID := fs.String("run", os.Getenv("RUN_ID"), "run id")
	agent := fs.String("agent", "adgenctl", "agent name")
	status := fs.String("status", "info", "event status")
	message := fs.String("message", "", "event message")
	step := fs.String("step", "", "step label")
	ratePerSec := fs.Int("rate", reporter.DefaultRatePerSec, "max webhook posts per second")
	_ = fs.Parse(args)

	if *runID == "" {
		return errors.New("--run is required")
	}
	p := reporter.Progress{RunID: *runID, Agent: *agent, Status: *status, Message: *message}
	if *step != "" {
		p.Step = *step
	}
	rep := reporter.New(*target, *secret, *ratePerSec, logx.Component(log, "reporter"))
	if !rep.Report(ctx, p) {
		return errors.New("webhook delivery failed")
	}
	return nil
}

func runStart(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	base := fs.String("base", "http://localhost:8080", "control panel base URL")
	_ = fs.Parse(args)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(*base, "/")+"/api/run", bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimSpace(string(body)))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("run request failed: %s", resp.Status)
	}
	return nil
}

func runTail(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("tail", pflag.ExitOnError)
	base := fs.String("base", "http://localhost:8080", "control panel base URL")
	runID := fs.String("run", "", "run id")
	_ = fs.Parse(args)

	if *runID == "" {
		return errors.New("--run is required")
	}
	wsURL, err := tailURL(*base, *runID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		var evt eventbus.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			fmt.Println(string(data))
			continue
		}
		ts := time.UnixMilli(evt.Timestamp).Format(time.TimeOnly)
		fmt.Printf("%s %-14s %-8s %s\n", ts, evt.Agent, evt.Status, evt.Message)
	}
}

// tailURL maps an http(s) base URL onto the websocket event endpoint.
func tailURL(base, runID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/api/agent-events/ws"
	u.RawQuery = url.Values{"runId": {runID}}.Encode()
	return u.String(), nil
}

func runSeed(ctx context.Context, args []string, log zerolog.Logger) error {
	cfg := config.Load()
	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	var p seed.Params
	fs.IntVar(&p.TotalUsers, "users", seed.DefaultTotalUsers, "registered users to create")
	fs.Float64Var(&p.OrderChance, "order-chance", seed.DefaultOrderChance, "probability a shopping session ends in an order")
	fs.IntVar(&p.AnonCount, "anon", seed.DefaultAnonCount, "anonymous sessions to create")
	fs.Float64Var(&p.USShare, "us", seed.DefaultUSShare, "share of users located in the US")
	fs.Float64Var(&p.EUShare, "eu", seed.DefaultEUShare, "share of users located in Europe")
	fs.Float64Var(&p.OtherShare, "other", seed.DefaultOtherShare, "share of users located elsewhere")
	fs.Uint64Var(&p.Seed, "seed", 0, "random seed; 0 picks one from the clock")
	_ = fs.Parse(args)

	db, err := state.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	seeder := &seed.Seeder{Store: state.NewStore(db), Log: logx.Component(log, "seed")}
	report, err := seeder.Run(ctx, p)
	if err != nil {
		return err
	}
	fmt.Print(report.Output)
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
