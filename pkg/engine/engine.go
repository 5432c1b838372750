package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/pkg/llm"
	"github.com/mizunoki/ragna/pkg/sanitize"
	"github.com/mizunoki/ragna/pkg/store"
	"github.com/mizunoki/ragna/pkg/summarizer"
)

// Retrieval and history bounds.
const (
	retrievalTopK      = 5
	memorySnippetMax   = 500
	knowledgeChunkMax  = 600
	citationPreviewMax = 160
	historySent        = 10
	historyKept        = 20
)

// Knowledge confidence thresholds over cosine scores.
const (
	highTopScore   = 0.75
	highMeanTop3   = 0.70
	mediumTopScore = 0.65
)

// Engine ties retrieval, guarded prompting, generation and memory writeback
// into one ask pipeline.
type Engine struct {
	memory     *store.EntryStore
	knowledge  *store.DocumentStore
	client     *llm.Client
	summarizer *summarizer.Summarizer
	redactor   *sanitize.Redactor
	logger     zerolog.Logger
}

// Config configures an Engine. Summarizer and Redactor are optional.
type Config struct {
	Memory     *store.EntryStore
	Knowledge  *store.DocumentStore
	Client     *llm.Client
	Summarizer *summarizer.Summarizer
	Redactor   *sanitize.Redactor
	Logger     zerolog.Logger
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Memory == nil || cfg.Knowledge == nil || cfg.Client == nil {
		return nil, errors.New("memory store, knowledge store and client are required")
	}
	redactor := cfg.Redactor
	if redactor == nil {
		redactor = &sanitize.Redactor{}
	}
	return &Engine{
		memory:     cfg.Memory,
		knowledge:  cfg.Knowledge,
		client:     cfg.Client,
		summarizer: cfg.Summarizer,
		redactor:   redactor,
		logger:     cfg.Logger,
	}, nil
}

// AskRequest is one user turn. History carries prior turns; the bounded,
// updated history comes back in the response.
type AskRequest struct {
	Prompt   string
	History  []llm.Message
	Extended bool
	Image    *llm.Image
}

// Citation points an [S#] marker in the reply back to its source chunk.
type Citation struct {
	S       int     `json:"s"`
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Source  string  `json:"source"`
	Index   int     `json:"index"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview"`
}

// ToolResult is the output of one executed tool call.
type ToolResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// AskResponse is the full outcome of one ask.
type AskResponse struct {
	Response            string        `json:"response"`
	MemoryUsed          []string      `json:"memory_used"`
	KnowledgeUsed       []string      `json:"knowledge_used"`
	Citations           []Citation    `json:"citations"`
	KnowledgeConfidence string        `json:"knowledge_confidence,omitempty"`
	Refusal             bool          `json:"refusal"`
	ToolResults         []ToolResult  `json:"tool_results,omitempty"`
	ContinuationRounds  int           `json:"continuation_rounds"`
	FinishReason        string        `json:"finish_reason"`
	Usage               llm.Usage     `json:"usage"`
	Metrics             llm.Metrics   `json:"metrics"`
	History             []llm.Message `json:"history"`
}

const refusalText = "I don't have sufficient information in the knowledge base to answer confidently."

// Ask retrieves context from both stores, generates a guarded reply, runs any
// surfaced tool calls, and writes the sanitized prompt back to memory.
func (e *Engine) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	resp := &AskResponse{}
	var systemBlocks []string

	if block, ids := e.memoryBlock(ctx, req.Prompt); block != "" {
		systemBlocks = append(systemBlocks, block)
		resp.MemoryUsed = ids
	}

	kb := e.knowledgeBlock(ctx, req.Prompt)
	resp.KnowledgeUsed = kb.usedIDs
	resp.Citations = kb.citations
	resp.KnowledgeConfidence = kb.confidence
	if kb.block != "" {
		systemBlocks = append(systemBlocks, kb.block)
	}

	// Low retrieval confidence with no usable context means an honest
	// refusal beats a hallucinated answer.
	if kb.refusal && len(systemBlocks) == 0 {
		resp.Response = refusalText
		resp.Refusal = true
		resp.History = boundHistory(append(append([]llm.Message{}, req.History...),
			llm.Message{Role: "user", Content: req.Prompt},
			llm.Message{Role: "assistant", Content: refusalText}))
		return resp, nil
	}

	systemContext := ""
	if len(systemBlocks) > 0 {
		systemContext = sanitize.GuardrailPreamble() + "\n\n" +
			strings.Join(systemBlocks, "\n\n") +
			"\n\nIf insufficient context, state lack of information rather than guessing."
	}

	history := req.History
	if len(history) > historySent {
		history = history[len(history)-historySent:]
	}
	messages := append(append([]llm.Message{}, history...),
		llm.Message{Role: "user", Content: req.Prompt})

	var auto *bool
	if req.Extended {
		on := true
		auto = &on
	}
	result := e.client.Generate(ctx, llm.GenerateRequest{
		Messages:      messages,
		SystemContext: systemContext,
		AutoContinue:  auto,
		Image:         req.Image,
	})
	if result.Failed {
		return nil, fmt.Errorf("generation failed: %s", result.ErrorMessage)
	}

	if len(result.ToolCalls) > 0 {
		messages, resp.ToolResults = e.runTools(ctx, messages, result)
		final := e.client.Generate(ctx, llm.GenerateRequest{
			Messages:      messages,
			SystemContext: systemContext,
			AutoContinue:  auto,
		})
		if final.Failed {
			return nil, fmt.Errorf("generation failed after tools: %s", final.ErrorMessage)
		}
		result = final
	}

	resp.Response = result.Text
	resp.ContinuationRounds = result.Rounds
	resp.FinishReason = result.FinishReason
	resp.Usage = result.Usage
	resp.Metrics = result.Metrics

	resp.History = boundHistory(append(append([]llm.Message{}, req.History...),
		llm.Message{Role: "user", Content: req.Prompt},
		llm.Message{Role: "assistant", Content: result.Text}))

	e.rememberPrompt(ctx, req.Prompt)
	return resp, nil
}

// memoryBlock searches memory and renders the snippet block. Snippets are
// re-sanitized on the way out so a poisoned entry is neutralized twice.
func (e *Engine) memoryBlock(ctx context.Context, prompt string) (string, []string) {
	hits, err := e.memory.Search(ctx, prompt, retrievalTopK)
	if err != nil {
		e.logger.Error().Err(err).Msg("Memory retrieval failed")
		return "", nil
	}
	if len(hits) == 0 {
		return "", nil
	}

	ids := make([]string, 0, len(hits))
	snippets := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
		text := truncate(h.Text, memorySnippetMax)
		clean, report := sanitize.Sanitize(text)
		flag := ""
		if report.Suspicious {
			flag = " !"
		}
		snippets = append(snippets, fmt.Sprintf("[%s | score=%.3f%s] %s", shortID(h.ID), h.Score, flag, clean))
	}
	return "MEMORY SNIPPETS:\n" + strings.Join(snippets, "\n"), ids
}

type knowledgeContext struct {
	block      string
	usedIDs    []string
	citations  []Citation
	confidence string
	refusal    bool
}

// knowledgeBlock searches the knowledge store and classifies retrieval
// confidence. Low confidence suppresses the block entirely.
func (e *Engine) knowledgeBlock(ctx context.Context, prompt string) knowledgeContext {
	var out knowledgeContext

	hits, err := e.knowledge.Search(ctx, prompt, retrievalTopK)
	if err != nil {
		e.logger.Error().Err(err).Msg("Knowledge retrieval failed")
		return out
	}
	if len(hits) == 0 {
		return out
	}

	topScore := hits[0].Score
	n := len(hits)
	if n > 3 {
		n = 3
	}
	meanTop := 0.0
	for _, h := range hits[:n] {
		meanTop += h.Score
	}
	meanTop /= float64(n)

	switch {
	case topScore >= highTopScore && meanTop >= highMeanTop3:
		out.confidence = "high"
	case topScore >= mediumTopScore:
		out.confidence = "medium"
	default:
		out.confidence = "low"
		out.refusal = true
	}

	var snippets []string
	for i, h := range hits {
		out.usedIDs = append(out.usedIDs, h.ChunkID)
		out.citations = append(out.citations, Citation{
			S:       i + 1,
			ChunkID: h.ChunkID,
			DocID:   h.DocID,
			Source:  h.Source,
			Index:   h.Index,
			Score:   h.Score,
			Preview: truncate(h.Text, citationPreviewMax),
		})

		text := truncate(h.Text, knowledgeChunkMax)
		clean, report := sanitize.Sanitize(text)
		flag := ""
		if report.Suspicious {
			flag = " !"
		}
		snippets = append(snippets, fmt.Sprintf("[S%d%s score=%.3f src=%s idx=%d]\n%s",
			i+1, flag, h.Score, h.Source, h.Index, clean))
	}

	if !out.refusal {
		out.block = "KNOWLEDGE BASE CONTEXT (use strictly; cite sources as [S#]):\n" +
			strings.Join(snippets, "\n---\n")
	}
	return out
}

// runTools executes surfaced tool calls and appends the exchange as
// assistant and tool turns for the final round.
func (e *Engine) runTools(ctx context.Context, messages []llm.Message, result *llm.GenerateResult) ([]llm.Message, []ToolResult) {
	var toolResults []ToolResult
	for _, call := range result.ToolCalls {
		output, err := e.client.ExecuteTool(ctx, call)
		if err != nil {
			output = fmt.Sprintf("Tool error: %v", err)
		}
		toolResults = append(toolResults, ToolResult{Name: call.Name, Result: output})
		messages = append(messages,
			llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{call}},
			llm.Message{Role: "tool", Content: output, ToolCallID: call.ID})
	}
	return messages, toolResults
}

// rememberPrompt redacts and sanitizes the user prompt, then stores it as a
// memory entry and gives the summarizer a chance to compress. The original
// text is discarded so a poisoned prompt cannot enter the store.
func (e *Engine) rememberPrompt(ctx context.Context, prompt string) {
	redacted, piiStats := e.redactor.Redact(prompt)
	clean, report := sanitize.Sanitize(redacted)

	meta := map[string]interface{}{}
	if report.Suspicious {
		meta["suspicious"] = true
	}
	if len(piiStats) > 0 {
		meta["pii_redacted"] = piiStats
	}

	if _, err := e.memory.Add(ctx, clean, meta); err != nil {
		e.logger.Error().Err(err).Msg("Memory writeback failed")
		return
	}
	if e.summarizer != nil {
		if _, err := e.summarizer.MaybeSummarize(ctx); err != nil {
			e.logger.Debug().Err(err).Msg("Summarization pass failed")
		}
	}
}

// IngestText stores a document in the knowledge store.
func (e *Engine) IngestText(ctx context.Context, text, source string, opts store.IngestOptions) (store.IngestResult, error) {
	return e.knowledge.IngestText(ctx, text, source, opts)
}

func boundHistory(history []llm.Message) []llm.Message {
	if len(history) > historyKept {
		return history[len(history)-historyKept:]
	}
	return history
}

func truncate(text string, max int) string {
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
