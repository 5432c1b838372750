package llm

import "time"

// Message is one chat turn in provider-neutral form.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation surfaced by the model. Arguments is the raw
// JSON string exactly as the model produced it; parsing happens at execution.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Image is an inline attachment for multimodal requests.
type Image struct {
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

// GenerateRequest describes one generation. The zero values of AutoContinue
// and MaxRounds defer to the client configuration.
type GenerateRequest struct {
	Messages      []Message
	SystemContext string
	AutoContinue  *bool
	MaxRounds     *int
	Image         *Image
}

// Usage is accumulated token accounting across continuation rounds.
// Approximate is set when any round lacked upstream usage and a word-count
// heuristic filled in.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Approximate      bool `json:"approximate"`
}

// Metrics is best-effort request timing. TTFT approximates time to first
// token as the time until the first round parsed.
type Metrics struct {
	Started   time.Time     `json:"started"`
	Completed time.Time     `json:"completed"`
	Duration  time.Duration `json:"duration"`
	TTFT      time.Duration `json:"ttft"`
}

// GenerateResult is the outcome of a generation. Transport failures do not
// produce a Go error; they produce Failed plus ErrorMessage so callers always
// get usage and timing back.
type GenerateResult struct {
	Text               string     `json:"text"`
	ToolCalls          []ToolCall `json:"tool_calls,omitempty"`
	FinishReason       string     `json:"finish_reason"`
	Rounds             int        `json:"rounds"`
	MultimodalFallback bool       `json:"multimodal_fallback"`
	Failed             bool       `json:"failed"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	Usage              Usage      `json:"usage"`
	Metrics            Metrics    `json:"metrics"`
}

// ModelInfo is the first entry of the backend's /models listing.
type ModelInfo struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by,omitempty"`
}
