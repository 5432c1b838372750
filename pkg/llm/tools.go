package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/mizunoki/ragna/internal/observability"
)

const wikipediaAPI = "https://en.wikipedia.org/w/api.php"

// ToolFunc executes one tool invocation with already-parsed arguments.
type ToolFunc func(ctx context.Context, args map[string]interface{}) (string, error)

type toolEntry struct {
	name        string
	description string
	schema      map[string]interface{}
	fn          ToolFunc
}

// Registry holds the tools advertised to the model. Registration happens at
// setup time; lookup is read-only afterwards, so no locking.
type Registry struct {
	order   []string
	entries map[string]toolEntry

	// httpClient and searchBase are swappable for tests.
	httpClient *http.Client
	searchBase string
}

// NewRegistry creates a registry with the built-in search_web tool.
func NewRegistry() *Registry {
	r := &Registry{
		entries:    make(map[string]toolEntry),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		searchBase: wikipediaAPI,
	}
	r.Register("search_web",
		"Search Wikipedia and fetch the introduction of the most relevant article.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query for Wikipedia",
				},
			},
			"required": []interface{}{"query"},
		},
		r.searchWeb,
	)
	return r
}

// SetSearchBase points search_web at a different MediaWiki API endpoint,
// for self-hosted mirrors and tests.
func (r *Registry) SetSearchBase(base string) {
	r.searchBase = base
}

// Register adds (or replaces) a tool definition.
func (r *Registry) Register(name, description string, schema map[string]interface{}, fn ToolFunc) {
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = toolEntry{name: name, description: description, schema: schema, fn: fn}
}

// Definitions renders the registry in chat completion tool format, in
// registration order.
func (r *Registry) Definitions() []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(r.order))
	for _, name := range r.order {
		entry := r.entries[name]
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        entry.name,
				Description: openai.String(entry.description),
				Parameters:  openai.FunctionParameters(entry.schema),
			},
		})
	}
	return out
}

// ExecuteTool parses the call's arguments and runs the named tool. Unknown
// tools and argument parse failures come back as errors, never panics.
func (c *Client) ExecuteTool(ctx context.Context, call ToolCall) (string, error) {
	start := time.Now()
	result, err := c.tools.execute(ctx, call)
	observability.RecordToolExecution(call.Name, time.Since(start), err == nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("tool", call.Name).Msg("Tool execution failed")
	}
	return result, err
}

func (r *Registry) execute(ctx context.Context, call ToolCall) (string, error) {
	entry, ok := r.entries[call.Name]
	if !ok {
		return "", fmt.Errorf("tool %q is not implemented", call.Name)
	}
	args, err := parseArguments(call.Arguments, entry.schema)
	if err != nil {
		return "", fmt.Errorf("tool %q arguments: %w", call.Name, err)
	}
	return entry.fn(ctx, args)
}

// searchWeb finds the most relevant Wikipedia article for the query and
// returns its plain-text introduction with a source link.
func (r *Registry) searchWeb(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("search_web requires a non-empty query")
	}

	title, err := r.searchTitle(ctx, query)
	if err != nil {
		return "", fmt.Errorf("wikipedia search: %w", err)
	}
	if title == "" {
		return fmt.Sprintf("No Wikipedia article found for %q", query), nil
	}

	extractTitle, extract, err := r.fetchIntro(ctx, title)
	if err != nil {
		return "", fmt.Errorf("wikipedia extract: %w", err)
	}
	if extract == "" {
		return fmt.Sprintf("No Wikipedia article found for %q", query), nil
	}

	link := "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(extractTitle, " ", "_"))
	return fmt.Sprintf("Wikipedia article: %s\n---\n%s\n\nSource: [%s](%s)", extractTitle, extract, link, link), nil
}

func (r *Registry) searchTitle(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"format":   {"json"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"1"},
	}
	var payload struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := r.getJSON(ctx, params, &payload); err != nil {
		return "", err
	}
	if len(payload.Query.Search) == 0 {
		return "", nil
	}
	return payload.Query.Search[0].Title, nil
}

func (r *Registry) fetchIntro(ctx context.Context, title string) (string, string, error) {
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"titles":      {title},
		"prop":        {"extracts"},
		"exintro":     {"true"},
		"explaintext": {"true"},
		"redirects":   {"1"},
	}
	var payload struct {
		Query struct {
			Pages map[string]struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := r.getJSON(ctx, params, &payload); err != nil {
		return "", "", err
	}
	for id, page := range payload.Query.Pages {
		if id == "-1" {
			continue
		}
		return page.Title, strings.TrimSpace(page.Extract), nil
	}
	return "", "", nil
}

func (r *Registry) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.searchBase+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "ragna/1.0 (RAG middle tier)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
