package taskgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mathprep/taskforge/internal/catalog"
	"github.com/mathprep/taskforge/internal/llm"
)

// envelopeSchema is requested when Config.Structured is set: the task text
// plus the catalog topic codes the task works on.
var envelopeSchema = &llm.Schema{
	Name:        "task-envelope",
	Description: "Personalized OGE study task and the topic codes it focuses on",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "The study task in Markdown",
				"minLength":   1,
			},
			"focus_topics": map[string]any{
				"type":        "array",
				"description": "Catalog topic codes such as \"3.1\"",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required":             []any{"task", "focus_topics"},
		"additionalProperties": false,
	},
}

const envelopeInstruction = `

Верни ответ строго в виде JSON-объекта с полями:
- "task": текст задания в Markdown;
- "focus_topics": массив кодов тем из кодификатора (например "3.1"), на которые направлено задание.`

type envelope struct {
	Task        string   `json:"task"`
	FocusTopics []string `json:"focus_topics"`
}

// decodeEnvelope reads a schema-checked completion. Topic codes missing
// from the catalog are dropped.
func decodeEnvelope(content json.RawMessage, cat *catalog.Catalog) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return envelope{}, fmt.Errorf("decode task envelope: %w", err)
	}
	env.Task = strings.TrimSpace(env.Task)
	env.FocusTopics = lo.Uniq(lo.Filter(lo.Map(env.FocusTopics, func(code string, _ int) string {
		return strings.TrimSpace(code)
	}), func(code string, _ int) bool {
		_, ok := cat.Topic(code)
		return ok
	}))
	return env, nil
}
