package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/adgen/adgen/internal/eventbus"
)

type fakeWSWriter struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeWSWriter) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeWSWriter) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.messages...)
}

func TestStreamEventsWriter(t *testing.T) {
	broker := eventbus.NewBroker(eventbus.Options{})
	if _, err := broker.Publish(eventbus.EventInput{RunID: "r1", Agent: "a", Status: "s", Message: "replayed"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &fakeWSWriter{}
	go func() {
		_ = streamEvents(ctx, broker, "r1", writer)
	}()

	deadline := time.After(2 * time.Second)
	for len(writer.snapshot()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for replay")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	if _, err := broker.Publish(eventbus.EventInput{RunID: "r1", Agent: "a", Status: "s", Message: "boom"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for {
		msgs := writer.snapshot()
		if len(msgs) >= 2 {
			var first, second eventbus.Event
			if err := json.Unmarshal(msgs[0], &first); err != nil {
				t.Fatalf("decode ws payload: %v", err)
			}
			if err := json.Unmarshal(msgs[1], &second); err != nil {
				t.Fatalf("decode ws payload: %v", err)
			}
			if first.Message != "replayed" || second.Message != "boom" {
				t.Fatalf("unexpected ws messages: %q, %q", first.Message, second.Message)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for ws message")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestAgentEventsWSEndToEnd(t *testing.T) {
	server := newTestServer(t)
	if _, err := server.Broker.Publish(eventbus.EventInput{RunID: "r9", Agent: "creative", Status: "done", Message: "hello"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/agent-events/ws?runId=r9"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var evt eventbus.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Message != "hello" || evt.Agent != "creative" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
