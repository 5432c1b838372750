package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeWikipedia(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("list") {
		case "search":
			if q.Get("srsearch") == "nothing matches this" {
				fmt.Fprint(w, `{"query":{"search":[]}}`)
				return
			}
			fmt.Fprint(w, `{"query":{"search":[{"title":"Go (programming language)"}]}}`)
		default:
			fmt.Fprint(w, `{"query":{"pages":{"12345":{"title":"Go (programming language)","extract":"Go is a statically typed language."}}}}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newToolClient(t *testing.T) *Client {
	t.Helper()
	registry := NewRegistry()
	registry.SetSearchBase(fakeWikipedia(t).URL)

	cfg := DefaultConfig()
	cfg.Logger = zerolog.Nop()
	return New(cfg, registry)
}

func TestExecuteToolSearchWeb(t *testing.T) {
	client := newToolClient(t)

	result, err := client.ExecuteTool(context.Background(), ToolCall{
		ID:        "call_1",
		Name:      "search_web",
		Arguments: `{"query":"golang"}`,
	})
	require.NoError(t, err)
	assert.Contains(t, result, "Wikipedia article: Go (programming language)")
	assert.Contains(t, result, "Go is a statically typed language.")
	assert.Contains(t, result, "https://en.wikipedia.org/wiki/Go_(programming_language)")
}

func TestExecuteToolNoArticle(t *testing.T) {
	client := newToolClient(t)

	result, err := client.ExecuteTool(context.Background(), ToolCall{
		Name:      "search_web",
		Arguments: `{"query":"nothing matches this"}`,
	})
	require.NoError(t, err)
	assert.Contains(t, result, "No Wikipedia article found")
}

func TestExecuteToolUnknown(t *testing.T) {
	client := newToolClient(t)

	_, err := client.ExecuteTool(context.Background(), ToolCall{Name: "launch_rocket", Arguments: "{}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestExecuteToolMissingQuery(t *testing.T) {
	client := newToolClient(t)

	_, err := client.ExecuteTool(context.Background(), ToolCall{Name: "search_web", Arguments: `{}`})
	require.Error(t, err)
}

func TestRegistryDefinitions(t *testing.T) {
	registry := NewRegistry()
	registry.Register("echo", "Echo the input.", map[string]interface{}{"type": "object"}, func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "ok", nil
	})

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "search_web", defs[0].Function.Name)
	assert.Equal(t, "echo", defs[1].Function.Name)
}

func TestParseArguments(t *testing.T) {
	querySchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"query"},
	}
	openSchema := map[string]interface{}{"type": "object"}

	tests := []struct {
		name    string
		raw     string
		schema  map[string]interface{}
		want    map[string]interface{}
		wantErr string
	}{
		{
			name:   "strict json",
			raw:    `{"query":"go"}`,
			schema: querySchema,
			want:   map[string]interface{}{"query": "go"},
		},
		{
			name:   "fenced json",
			raw:    "```json\n{\"query\":\"go\"}\n```",
			schema: querySchema,
			want:   map[string]interface{}{"query": "go"},
		},
		{
			name:   "garbage with open schema falls back to empty args",
			raw:    "not json at all",
			schema: openSchema,
			want:   map[string]interface{}{},
		},
		{
			name:   "empty string with open schema",
			raw:    "",
			schema: openSchema,
			want:   map[string]interface{}{},
		},
		{
			name:    "garbage with required field aggregates all failures",
			raw:     "not json at all",
			schema:  querySchema,
			wantErr: "no parse strategy succeeded",
		},
		{
			name:    "valid json violating schema",
			raw:     `{"query":42}`,
			schema:  querySchema,
			wantErr: "no parse strategy succeeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArguments(tt.raw, tt.schema)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgumentsAggregatesStrategyNames(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"query"},
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
	}

	_, err := parseArguments("garbage", schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict-json")
	assert.Contains(t, err.Error(), "empty-args")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", stripCodeFence("plain"))
}
