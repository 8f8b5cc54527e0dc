package testutil

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

// handlerTransport serves client requests straight from a handler.
type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)
	res := rec.Result()
	res.Request = req
	return res, nil
}

// NewInProcessClient returns a client whose requests never leave the process.
// Streaming handlers need a StreamRecorder instead.
func NewInProcessClient(handler http.Handler) *http.Client {
	return &http.Client{Transport: handlerTransport{handler: handler}}
}

// StreamRecorder is a flushable ResponseWriter backed by a pipe so a test
// can read an event stream while the handler is still writing it.
type StreamRecorder struct {
	HeaderMap http.Header
	Code      int
	Body      io.ReadCloser
	writer    *io.PipeWriter
}

func NewStreamRecorder() *StreamRecorder {
	r, w := io.Pipe()
	return &StreamRecorder{
		HeaderMap: make(http.Header),
		Code:      http.StatusOK,
		Body:      r,
		writer:    w,
	}
}

func (sr *StreamRecorder) Header() http.Header { return sr.HeaderMap }

func (sr *StreamRecorder) WriteHeader(statusCode int) { sr.Code = statusCode }

func (sr *StreamRecorder) Write(p []byte) (int, error) { return sr.writer.Write(p) }

func (sr *StreamRecorder) Flush() {}

// Close ends the stream; pending Lines readers see the channel close.
func (sr *StreamRecorder) Close() error {
	return sr.writer.Close()
}

// Lines yields the non-empty lines of the body, so SSE frames arrive as
// "data: ..." and comment lines such as ": ping".
func (sr *StreamRecorder) Lines() <-chan string {
	out := make(chan string, 64)
	go func() {
		defer close(out)
		reader := bufio.NewReader(sr.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if line = strings.TrimRight(line, "\n"); line != "" {
				out <- line
			}
		}
	}()
	return out
}

// NewRequest builds a server-side request against the in-process host.
func NewRequest(method, path string, body []byte) *http.Request {
	return httptest.NewRequest(method, "http://in-process"+path, bytes.NewReader(body))
}
