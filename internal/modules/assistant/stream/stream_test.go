package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/yungbote/huddle-backend/internal/modules/assistant/events"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type fakeStream struct {
	ctx    context.Context
	deltas []llm.Delta
	delay  time.Duration
	block  bool
	i      int
}

func (s *fakeStream) Recv() (llm.Delta, error) {
	if s.block {
		<-s.ctx.Done()
		return llm.Delta{}, s.ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return llm.Delta{}, s.ctx.Err()
		}
	}
	if s.i >= len(s.deltas) {
		return llm.Delta{}, io.EOF
	}
	d := s.deltas[s.i]
	s.i++
	return d, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeProvider struct {
	open func(ctx context.Context) (llm.Stream, error)
}

func (p fakeProvider) Name() string { return "fake" }

func (p fakeProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return p.open(ctx)
}

func deltasProvider(deltas ...llm.Delta) fakeProvider {
	return fakeProvider{open: func(ctx context.Context) (llm.Stream, error) {
		return &fakeStream{ctx: ctx, deltas: deltas}, nil
	}}
}

func newTestDriver(cfg Config) *Driver {
	return NewDriver(Deps{Log: logger.Nop()}, cfg)
}

func contentOf(rec *events.Recorder) string {
	var b strings.Builder
	for _, ev := range rec.OfType(events.TypeContent) {
		b.WriteString(ev.Content)
	}
	return b.String()
}

func TestRunReassemblesInterleavedToolCalls(t *testing.T) {
	p := deltasProvider(
		llm.Delta{Content: "On it."},
		llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 0, ID: "call_a", Name: "create_", Arguments: `{"ti`}}},
		llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 1, ID: "call_b", Name: "create_note", Arguments: `{"title":`}}},
		llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 0, Name: "task", Arguments: `tle":"Ship"}`}}},
		llm.Delta{ToolCalls: []llm.ToolCallDelta{{Index: 1, Arguments: `"Log"}`}}},
		llm.Delta{FinishReason: "tool_calls"},
	)
	rec := &events.Recorder{}
	res, err := newTestDriver(Config{}).Run(context.Background(), p, llm.Request{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != StateToolCallsPending || res.FinishReason != "tool_calls" {
		t.Fatalf("state=%s finish=%s", res.State, res.FinishReason)
	}
	if len(res.ToolCalls) != 2 {
		t.Fatalf("calls=%+v", res.ToolCalls)
	}
	if c := res.ToolCalls[0]; c.ID != "call_a" || c.Name != "create_task" || c.Arguments != `{"title":"Ship"}` {
		t.Fatalf("call 0: %+v", c)
	}
	if c := res.ToolCalls[1]; c.ID != "call_b" || c.Name != "create_note" || c.Arguments != `{"title":"Log"}` {
		t.Fatalf("call 1: %+v", c)
	}
	if got := contentOf(rec); got != "On it." {
		t.Fatalf("content events=%q", got)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRunOneByteOpenAIStream(t *testing.T) {
	frames := []string{
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Creating "}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"it now."}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"create_task","arguments":""}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"title\":\"Q3 "}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"review\",\"due_date\""}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"tomorrow\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}
	var body strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&body, "data: %s\n\n", f)
	}
	body.WriteString("data: [DONE]\n\n")

	hc := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(iotest.OneByteReader(strings.NewReader(body.String()))),
			Request:    r,
		}, nil
	})}
	p, err := llm.NewOpenAI(logger.Nop(), llm.OpenAIConfig{APIKey: "k", BaseURL: "http://llm.test/v1", HTTPClient: hc})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	rec := &events.Recorder{}
	res, err := newTestDriver(Config{}).Run(context.Background(), p, llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.ToolCalls) != 1 {
		t.Fatalf("calls=%+v", res.ToolCalls)
	}
	want := `{"title":"Q3 review","due_date":"tomorrow"}`
	if got := res.ToolCalls[0].Arguments; got != want {
		t.Fatalf("arguments=%s want %s", got, want)
	}
	if got := contentOf(rec); got != "Creating it now." {
		t.Fatalf("content=%q", got)
	}
}

func TestRunInlineMarkupIsHiddenAndExtracted(t *testing.T) {
	p := deltasProvider(
		llm.Delta{Content: "Sure thing. <func"},
		llm.Delta{Content: `tion=create_task>{"title":"Call Ana"}`},
		llm.Delta{Content: "</function>"},
	)
	rec := &events.Recorder{}
	res, err := newTestDriver(Config{}).Run(context.Background(), p, llm.Request{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Inline || len(res.ToolCalls) != 1 || res.ToolCalls[0].Name != "create_task" {
		t.Fatalf("inline call not recovered: %+v", res)
	}
	if res.ToolCalls[0].Arguments != `{"title":"Call Ana"}` {
		t.Fatalf("args=%s", res.ToolCalls[0].Arguments)
	}
	shown := contentOf(rec)
	if strings.Contains(shown, "<") || strings.Contains(shown, "create_task") {
		t.Fatalf("markup leaked to client: %q", shown)
	}
	if res.Content != "Sure thing." {
		t.Fatalf("content=%q", res.Content)
	}
}

func TestRunPlainAngleBracketIsShown(t *testing.T) {
	p := deltasProvider(llm.Delta{Content: "a <"}, llm.Delta{Content: " b <b>bold</b>"})
	rec := &events.Recorder{}
	res, err := newTestDriver(Config{}).Run(context.Background(), p, llm.Request{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := contentOf(rec); got != "a < b <b>bold</b>" {
		t.Fatalf("content=%q", got)
	}
	if res.State != StateComplete || len(res.ToolCalls) != 0 {
		t.Fatalf("state=%s calls=%d", res.State, len(res.ToolCalls))
	}
}

func TestExtractInlineCallForms(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		tool    string
		args    string
		cleaned string
	}{
		{"function tag", `x <function=web_search>{"query":"go"}</function> y`, "web_search", `{"query":"go"}`, "x  y"},
		{"tool_call tag", `<tool_call>{"name":"create_note","arguments":{"title":"a"}}</tool_call>`, "create_note", `{"title":"a"}`, ""},
		{"string arguments", `<tool_call>{"name":"create_note","arguments":"{\"title\":\"a\"}"}</tool_call>`, "create_note", `{"title":"a"}`, ""},
		{"python tag", `ok <|python_tag|>{"name":"web_search","parameters":{"query":"q"}}`, "web_search", `{"query":"q"}`, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cleaned, call, ok := ExtractInlineCall(tc.in)
			if !ok {
				t.Fatalf("no call found")
			}
			if call.Name != tc.tool || call.Arguments != tc.args || cleaned != tc.cleaned {
				t.Fatalf("got name=%s args=%s cleaned=%q", call.Name, call.Arguments, cleaned)
			}
		})
	}
	if _, _, ok := ExtractInlineCall("nothing to see <here>"); ok {
		t.Fatalf("false positive")
	}
}

func TestRunClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opened := make(chan struct{})
	p := fakeProvider{open: func(sctx context.Context) (llm.Stream, error) {
		close(opened)
		return &fakeStream{ctx: sctx, block: true}, nil
	}}
	go func() {
		<-opened
		cancel()
	}()
	rec := &events.Recorder{}
	res, err := newTestDriver(Config{Timeout: 5 * time.Second}).Run(ctx, p, llm.Request{}, rec)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err=%v want ErrCancelled", err)
	}
	if res.State != StateAborted || res.CancelReason != events.CancelClientDisconnect {
		t.Fatalf("state=%s reason=%s", res.State, res.CancelReason)
	}
	last, _ := rec.Last()
	if last.Type != events.TypeCancelled || last.Reason != events.CancelClientDisconnect {
		t.Fatalf("last event=%+v", last)
	}
	if len(res.ToolCalls) != 0 {
		t.Fatalf("aborted run returned tool calls")
	}
}

func TestRunTimeout(t *testing.T) {
	p := fakeProvider{open: func(sctx context.Context) (llm.Stream, error) {
		return &fakeStream{ctx: sctx, block: true}, nil
	}}
	rec := &events.Recorder{}
	res, err := newTestDriver(Config{Timeout: 30 * time.Millisecond}).Run(context.Background(), p, llm.Request{}, rec)
	if !errors.Is(err, ErrCancelled) || res.CancelReason != events.CancelTimeout {
		t.Fatalf("err=%v reason=%s", err, res.CancelReason)
	}
	if got := rec.OfType(events.TypeCancelled); len(got) != 1 || got[0].Reason != events.CancelTimeout {
		t.Fatalf("cancelled events=%+v", got)
	}
}

func TestRunHeartbeatWhenIdle(t *testing.T) {
	p := fakeProvider{open: func(sctx context.Context) (llm.Stream, error) {
		return &fakeStream{ctx: sctx, delay: 80 * time.Millisecond, deltas: []llm.Delta{{Content: "late"}}}, nil
	}}
	rec := &events.Recorder{}
	_, err := newTestDriver(Config{Heartbeat: 10 * time.Millisecond}).Run(context.Background(), p, llm.Request{}, rec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.OfType(events.TypeHeartbeat)) == 0 {
		t.Fatalf("expected heartbeats while idle")
	}
	if contentOf(rec) != "late" {
		t.Fatalf("content=%q", contentOf(rec))
	}
}

func TestRunProviderOpenFailure(t *testing.T) {
	p := fakeProvider{open: func(ctx context.Context) (llm.Stream, error) {
		return nil, &llm.ProviderError{Provider: "fake", StatusCode: 503, Err: errors.New("overloaded")}
	}}
	rec := &events.Recorder{}
	res, err := newTestDriver(Config{}).Run(context.Background(), p, llm.Request{}, rec)
	if !errors.Is(err, ErrProvider) || !llm.IsProviderError(err) {
		t.Fatalf("err=%v", err)
	}
	if res.State != StateError {
		t.Fatalf("state=%s", res.State)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("no events expected, got %+v", rec.Events())
	}
}
