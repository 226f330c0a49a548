package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

const defaultAnthropicMaxTokens = 2048

type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

type AnthropicProvider struct {
	log       *logger.Logger
	client    anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropic(log *logger.Logger, cfg AnthropicConfig) (*AnthropicProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing LLM_API_KEY")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		log:       log.With("service", "AnthropicProvider"),
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  toAnthropicMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := toAnthropicTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, wrapAnthropicError(err)
	}
	return &anthropicStream{stream: stream, toolIndex: -1}, nil
}

// anthropicStream maps content blocks onto indexed tool call fragments. Each
// tool_use block gets the next index; its input_json_delta events carry the
// argument fragments.
type anthropicStream struct {
	stream    *ssestream.Stream[anthropic.MessageStreamEventUnion]
	toolIndex int
	inTool    bool
	done      bool
}

func (s *anthropicStream) Recv() (Delta, error) {
	for {
		if s.done {
			return Delta{}, io.EOF
		}
		if !s.stream.Next() {
			s.done = true
			if err := s.stream.Err(); err != nil {
				return Delta{}, wrapAnthropicError(err)
			}
			return Delta{}, io.EOF
		}
		ev := s.stream.Current()
		switch ev.Type {
		case "content_block_start":
			block := ev.AsContentBlockStart().ContentBlock
			if block.Type != "tool_use" {
				s.inTool = false
				continue
			}
			tu := block.AsToolUse()
			s.toolIndex++
			s.inTool = true
			return Delta{ToolCalls: []ToolCallDelta{{Index: s.toolIndex, ID: tu.ID, Name: tu.Name}}}, nil
		case "content_block_delta":
			d := ev.AsContentBlockDelta().Delta
			switch d.Type {
			case "text_delta":
				if d.Text != "" {
					return Delta{Content: d.Text}, nil
				}
			case "input_json_delta":
				if s.inTool && d.PartialJSON != "" {
					return Delta{ToolCalls: []ToolCallDelta{{Index: s.toolIndex, Arguments: d.PartialJSON}}}, nil
				}
			}
		case "content_block_stop":
			s.inTool = false
		case "message_delta":
			if reason := string(ev.AsMessageDelta().Delta.StopReason); reason != "" {
				if reason == "tool_use" {
					reason = "tool_calls"
				}
				return Delta{FinishReason: reason}, nil
			}
		case "message_stop":
			s.done = true
			return Delta{}, io.EOF
		case "error":
			s.done = true
			return Delta{}, &ProviderError{Provider: "anthropic", Err: errors.New("stream error event")}
		}
	}
}

func (s *anthropicStream) Close() error { return s.stream.Close() }

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}

func toAnthropicTools(tools []Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		param.OfTool.Description = anthropic.String(t.Description)
		out = append(out, param)
	}
	return out, nil
}

func wrapAnthropicError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Err: err}
	}
	return &ProviderError{Provider: "anthropic", Err: err}
}
