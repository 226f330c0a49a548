package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

func sseServer(t *testing.T, status int, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"upstream down","type":"server_error"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIProviderStreamsContentAndToolFragments(t *testing.T) {
	srv := sseServer(t, http.StatusOK, []string{
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Sure"}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"create_","arguments":"{\"ti"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"task","arguments":"tle\":\"x\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	})
	defer srv.Close()

	p, err := NewOpenAI(logger.Nop(), OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	stream, err := p.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var content, name, args strings.Builder
	var finish string
	for {
		d, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		content.WriteString(d.Content)
		for _, tc := range d.ToolCalls {
			if tc.Index != 0 {
				t.Fatalf("unexpected index %d", tc.Index)
			}
			name.WriteString(tc.Name)
			args.WriteString(tc.Arguments)
		}
		if d.FinishReason != "" {
			finish = d.FinishReason
		}
	}
	if content.String() != "Sure" {
		t.Fatalf("content = %q", content.String())
	}
	if name.String() != "create_task" {
		t.Fatalf("name = %q", name.String())
	}
	if args.String() != `{"title":"x"}` {
		t.Fatalf("args = %q", args.String())
	}
	if finish != "tool_calls" {
		t.Fatalf("finish = %q", finish)
	}
}

func TestOpenAIProviderNon2xxIsProviderError(t *testing.T) {
	srv := sseServer(t, http.StatusServiceUnavailable, nil)
	defer srv.Close()

	p, err := NewOpenAI(logger.Nop(), OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	_, err = p.Stream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if pe.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", pe.StatusCode)
	}
}

func TestNewOpenAIRequiresKeyOrBaseURL(t *testing.T) {
	if _, err := NewOpenAI(logger.Nop(), OpenAIConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}
