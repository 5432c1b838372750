package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/internal/observability"
)

// Config configures a generation client for an OpenAI-compatible backend.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	TopP         float64
	MaxTokens    int
	AutoContinue bool
	MaxRounds    int
	Logger       zerolog.Logger
}

// DefaultConfig returns generation defaults tuned for a local backend.
func DefaultConfig() Config {
	return Config{
		Model:        "gpt-3.5-turbo",
		Temperature:  0.7,
		TopP:         0.95,
		MaxTokens:    2048,
		AutoContinue: true,
		MaxRounds:    2,
	}
}

// Client talks to one OpenAI-compatible chat completion backend.
type Client struct {
	api    openai.Client
	cfg    Config
	tools  *Registry
	logger zerolog.Logger
}

// New creates a Client. Retries are disabled at the transport level: the
// continuation protocol owns round semantics, and failures must surface
// promptly as structured results.
func New(cfg Config, tools *Registry) *Client {
	observability.EnsureRegistered()

	if tools == nil {
		tools = NewRegistry()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &Client{
		api:    openai.NewClient(opts...),
		cfg:    cfg,
		tools:  tools,
		logger: cfg.Logger,
	}
}

// Tools exposes the tool registry backing ExecuteTool.
func (c *Client) Tools() *Registry {
	return c.tools
}

// Generate runs one generation with auto-continuation. It never returns a Go
// error for transport failures; those come back as a failed result carrying
// whatever usage and timing had accumulated.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) *GenerateResult {
	started := time.Now()
	var firstParsed time.Time

	autoContinue := c.cfg.AutoContinue
	if req.AutoContinue != nil {
		autoContinue = *req.AutoContinue
	}
	maxRounds := c.cfg.MaxRounds
	if req.MaxRounds != nil {
		maxRounds = *req.MaxRounds
	}

	messages, promptText := c.buildMessages(req)
	imageAttached := req.Image != nil

	result := &GenerateResult{}
	var acc usageAccumulator
	var segments []string

	round := 0
	for {
		resp, err := c.complete(ctx, messages)
		if err != nil && imageAttached && !result.MultimodalFallback && isBadRequest(err) {
			// Legacy backends reject multimodal content parts; retry once
			// with the image degraded to truncated inline base64 text.
			messages = c.degradeImageMessage(req)
			result.MultimodalFallback = true
			resp, err = c.complete(ctx, messages)
		}
		if err != nil {
			c.logger.Error().Err(err).Int("round", round).Msg("Generation request failed")
			result.Failed = true
			result.ErrorMessage = err.Error()
			break
		}
		if firstParsed.IsZero() {
			firstParsed = time.Now()
		}

		segment := ""
		finish := ""
		var toolCalls []ToolCall
		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			segment = choice.Message.Content
			finish = string(choice.FinishReason)
			for _, tc := range choice.Message.ToolCalls {
				toolCalls = append(toolCalls, ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}
		}
		if segment != "" {
			segments = append(segments, segment)
		}
		result.FinishReason = finish
		result.ToolCalls = toolCalls

		acc.observe(resp.Usage, round, segment, promptText)

		if finish == "length" && autoContinue && round < maxRounds && ctx.Err() == nil {
			messages = append(messages, openai.AssistantMessage(segment))
			messages = append(messages, openai.UserMessage("Continue."))
			round++
			continue
		}
		break
	}

	result.Rounds = round
	result.Text = strings.Join(segments, "\n")
	result.Usage = acc.snapshot()

	completed := time.Now()
	result.Metrics = Metrics{
		Started:   started,
		Completed: completed,
		Duration:  completed.Sub(started),
		TTFT:      ttft(started, firstParsed, completed),
	}

	observability.RecordGeneration(result.Metrics.Duration, round, !result.Failed)
	observability.RecordTokenUsage(result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return result
}

func (c *Client) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*openai.ChatCompletion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: messages,
		Tools:    c.tools.Definitions(),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.cfg.MaxTokens))
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}
	if c.cfg.TopP > 0 {
		params.TopP = openai.Float(c.cfg.TopP)
	}
	return c.api.Chat.Completions.New(ctx, params)
}

// buildMessages converts the request into SDK params. It returns the joined
// text of system and user turns alongside, for the prompt-side token
// heuristic.
func (c *Client) buildMessages(req GenerateRequest) ([]openai.ChatCompletionMessageParamUnion, string) {
	var out []openai.ChatCompletionMessageParamUnion
	var promptParts []string

	if req.SystemContext != "" {
		out = append(out, openai.SystemMessage(req.SystemContext))
		promptParts = append(promptParts, req.SystemContext)
	}

	lastUser := lastUserIndex(req.Messages)
	for i, msg := range req.Messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
			promptParts = append(promptParts, msg.Content)
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				out = append(out, assistantWithToolCalls(msg))
			} else {
				out = append(out, openai.AssistantMessage(msg.Content))
			}
		case "tool":
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			if req.Image != nil && i == lastUser {
				dataURL := fmt.Sprintf("data:%s;base64,%s", req.Image.MimeType, req.Image.Base64)
				out = append(out, openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
					openai.TextContentPart(msg.Content),
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				}))
			} else {
				out = append(out, openai.UserMessage(msg.Content))
			}
			promptParts = append(promptParts, msg.Content)
		}
	}
	return out, strings.Join(promptParts, "\n")
}

// degradeImageMessage rebuilds the conversation with the image embedded as
// truncated base64 inside the user turn's text.
func (c *Client) degradeImageMessage(req GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	const truncateAt = 8192

	raw := req.Image.Base64
	truncated := raw
	omitted := 0
	if len(raw) > truncateAt {
		truncated = raw[:truncateAt]
		omitted = len(raw) - truncateAt
	}
	note := ""
	suffix := ""
	if omitted > 0 {
		note = fmt.Sprintf("(base64 truncated, %d chars omitted)", omitted)
		suffix = "..."
	}

	degraded := req
	degraded.Image = nil
	messages := make([]Message, len(req.Messages))
	copy(messages, req.Messages)
	if i := lastUserIndex(messages); i >= 0 {
		messages[i].Content = fmt.Sprintf("%s\n\n---\nAttached image base64:\n%s%s\n%s\n---",
			messages[i].Content, truncated, suffix, note)
	}
	degraded.Messages = messages

	out, _ := c.buildMessages(degraded)
	return out
}

func lastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" || messages[i].Role == "" {
			return i
		}
	}
	return -1
}

func assistantWithToolCalls(msg Message) openai.ChatCompletionMessageParamUnion {
	calls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	assistant := openai.ChatCompletionMessage{
		Role:      "assistant",
		Content:   msg.Content,
		ToolCalls: calls,
	}
	return assistant.ToParam()
}

func isBadRequest(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 400
}

func ttft(started, firstParsed, completed time.Time) time.Duration {
	if firstParsed.IsZero() {
		return completed.Sub(started)
	}
	return firstParsed.Sub(started)
}

// usageAccumulator folds per-round usage into one total. Prompt tokens count
// once, on the first round that reports them; rounds without upstream usage
// fall back to a word-count heuristic and mark the total approximate.
type usageAccumulator struct {
	prompt     int
	completion int
	approx     bool
}

func (a *usageAccumulator) observe(usage openai.CompletionUsage, round int, segment, promptText string) {
	if usage.PromptTokens > 0 || usage.CompletionTokens > 0 {
		if round == 0 && a.prompt == 0 {
			a.prompt = int(usage.PromptTokens)
		}
		a.completion += int(usage.CompletionTokens)
		return
	}
	a.completion += approxTokens(segment)
	if round == 0 && a.prompt == 0 {
		a.prompt = approxTokens(promptText)
	}
	a.approx = true
}

func (a *usageAccumulator) snapshot() Usage {
	return Usage{
		PromptTokens:     a.prompt,
		CompletionTokens: a.completion,
		TotalTokens:      a.prompt + a.completion,
		Approximate:      a.approx,
	}
}

func approxTokens(text string) int {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		if strings.TrimSpace(text) == "" {
			return 0
		}
		return 1
	}
	return len(fields)
}

// CurrentModel probes the backend's model listing and returns the first
// model id, which doubles as a liveness check for local servers.
func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	info, err := c.ModelInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// ModelInfo returns the first entry of the backend's /models listing.
func (c *Client) ModelInfo(ctx context.Context) (ModelInfo, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	if len(page.Data) == 0 {
		return ModelInfo{}, errors.New("backend reported no models")
	}
	first := page.Data[0]
	return ModelInfo{
		ID:      first.ID,
		Created: first.Created,
		Object:  string(first.Object),
		OwnedBy: first.OwnedBy,
	}, nil
}
