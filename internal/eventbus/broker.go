package eventbus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/adgen/adgen/internal/idgen"
)

const (
	DefaultHistoryLimit = 500
	DefaultReplayLimit  = 100
	DefaultTTL          = 30 * time.Minute

	subscriberBuffer = 64
)

var ErrMissingFields = errors.New("missing required fields")

type Options struct {
	HistoryLimit int           // events kept per run
	ReplayLimit  int           // events replayed to a new subscriber
	TTL          time.Duration // idle time after which a run's history is swept
	Now          func() time.Time
}

// Broker fans run events out to live subscribers and keeps a bounded
// in-memory history per run for polling and replay. It is process local and
// best effort: nothing survives a restart and a slow subscriber misses events
// rather than stalling the publisher.
type Broker struct {
	opts Options

	mu   sync.RWMutex
	runs map[string][]Event
	subs map[string]map[string]*subscriber
}

type subscriber struct {
	ch chan Event
}

func NewBroker(opts Options) *Broker {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.ReplayLimit <= 0 {
		opts.ReplayLimit = DefaultReplayLimit
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Broker{
		opts: opts,
		runs: map[string][]Event{},
		subs: map[string]map[string]*subscriber{},
	}
}

func (b *Broker) Publish(input EventInput) (Event, error) {
	runID := input.RunID
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(input.Agent) == "" || strings.TrimSpace(input.Status) == "" {
		return Event{}, ErrMissingFields
	}

	now := b.opts.Now().UnixMilli()
	ts := input.Timestamp
	if ts <= 0 {
		ts = now
	}
	evt := Event{
		ID:         idgen.EventID(runID, ts),
		Agent:      input.Agent,
		Status:     input.Status,
		Message:    input.Message,
		Step:       input.Step,
		Meta:       input.Meta,
		Timestamp:  ts,
		ReceivedAt: now,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	history := append(b.runs[runID], evt)
	if over := len(history) - b.opts.HistoryLimit; over > 0 {
		n := copy(history, history[over:])
		clear(history[n:])
		history = history[:n]
	}
	b.runs[runID] = history

	for _, sub := range b.subs[runID] {
		select {
		case sub.ch <- evt:
		default:
			// Drop if subscriber is slow.
		}
	}
	return evt, nil
}

// Events returns the run's history, or only the events newer than since when
// since > 0, along with the full history length.
func (b *Broker) Events(runID string, since int64) ([]Event, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	history := b.runs[runID]
	out := make([]Event, 0, len(history))
	for _, e := range history {
		if since > 0 && e.Timestamp <= since {
			continue
		}
		out = append(out, e)
	}
	return out, len(history)
}

// Subscribe registers a live subscriber for runID. The returned replay holds
// the most recent history; every later event arrives on the channel, so
// nothing is seen twice and nothing is skipped between the two. The channel
// is closed once ctx is done.
func (b *Broker) Subscribe(ctx context.Context, runID string) ([]Event, <-chan Event) {
	ch := make(chan Event, subscriberBuffer)
	id := ulid.Make().String()

	b.mu.Lock()
	history := b.runs[runID]
	start := max(len(history)-b.opts.ReplayLimit, 0)
	replay := append([]Event(nil), history[start:]...)
	set := b.subs[runID]
	if set == nil {
		set = map[string]*subscriber{}
		b.subs[runID] = set
	}
	set[id] = &subscriber{ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if set := b.subs[runID]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(b.subs, runID)
			}
		}
		close(ch)
		b.mu.Unlock()
	}()

	return replay, ch
}

// Sweep drops the history of runs whose newest event is older than the TTL
// and returns their ids. Live subscribers are left alone.
func (b *Broker) Sweep(now time.Time) []string {
	cutoff := now.Add(-b.opts.TTL).UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	var removed []string
	for runID, history := range b.runs {
		if len(history) == 0 || history[len(history)-1].Timestamp < cutoff {
			delete(b.runs, runID)
			removed = append(removed, runID)
		}
	}
	return removed
}

func (b *Broker) SubscriberCount(runID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[runID])
}

func (b *Broker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Stats{Runs: len(b.runs)}
	for _, h := range b.runs {
		st.Events += len(h)
	}
	for _, set := range b.subs {
		st.Subscribers += len(set)
	}
	return st
}
