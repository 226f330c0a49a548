// Package sse writes and reads text/event-stream frames.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Writer emits one `data: <json>\n\n` frame per event and flushes after each.
// It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// Start sends the event-stream headers. It is called implicitly by the first Send.
func (s *Writer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Writer) startLocked() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
	s.started = true
}

func (s *Writer) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Writer) Send(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", raw); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
