package chat

// MessageMetadata is the JSON stored on assistant replies.
type MessageMetadata struct {
	RequestID   string            `json:"request_id,omitempty"`
	Moderation  *ModerationRecord `json:"moderation,omitempty"`
	ToolResults []ToolResult      `json:"tool_results,omitempty"`
	WebSources  []WebSource       `json:"web_sources,omitempty"`
	Usage       *Usage            `json:"usage,omitempty"`
	Fallback    string            `json:"fallback,omitempty"`
}

type ModerationRecord struct {
	Input  *ModerationVerdict `json:"input,omitempty"`
	Output *ModerationVerdict `json:"output,omitempty"`
}

type ModerationVerdict struct {
	Outcome    string   `json:"outcome"`
	Safe       bool     `json:"safe"`
	Categories []string `json:"categories,omitempty"`
	Severity   string   `json:"severity"`
	Blocked    bool     `json:"blocked"`
}

type ToolResult struct {
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Tool       string         `json:"tool"`
	Success    bool           `json:"success"`
	Cached     bool           `json:"cached,omitempty"`
	Summary    map[string]any `json:"summary,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
}

type WebSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Host  string `json:"host"`
}

type Usage struct {
	PromptTokens     int   `json:"prompt_tokens"`
	ContextTokens    int   `json:"context_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	Cost             int64 `json:"cost"`
}
