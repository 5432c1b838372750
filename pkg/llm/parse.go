package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// parseArguments turns the model's raw argument string into a validated map.
// Strategies run in order; the first whose candidate both parses and
// validates against the tool's schema wins. When every strategy fails, the
// failures are aggregated into one diagnostic so the caller sees the full
// picture instead of just the last attempt.
func parseArguments(raw string, schema map[string]interface{}) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)

	strategies := []struct {
		name string
		run  func() (map[string]interface{}, error)
	}{
		{"strict-json", func() (map[string]interface{}, error) {
			if raw == "" {
				return nil, fmt.Errorf("empty argument string")
			}
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, err
			}
			return args, nil
		}},
		{"fenced-json", func() (map[string]interface{}, error) {
			inner := stripCodeFence(raw)
			if inner == raw {
				return nil, fmt.Errorf("no code fence present")
			}
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(inner), &args); err != nil {
				return nil, err
			}
			return args, nil
		}},
		{"empty-args", func() (map[string]interface{}, error) {
			return map[string]interface{}{}, nil
		}},
	}

	var failures []string
	for _, strategy := range strategies {
		args, err := strategy.run()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.name, err))
			continue
		}
		if err := validateAgainstSchema(args, schema); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", strategy.name, err))
			continue
		}
		return args, nil
	}
	return nil, fmt.Errorf("no parse strategy succeeded: %s", strings.Join(failures, "; "))
}

func validateAgainstSchema(args, schema map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(details, "; "))
	}
	return nil
}

// stripCodeFence unwraps ```json ... ``` style fences models sometimes emit
// around tool arguments.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimPrefix(s, "```")
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
