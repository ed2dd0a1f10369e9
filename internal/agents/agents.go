// Package agents implements spec.md's four role-bound LLM callers
// (Archivist, Writer, Editor, Extractor) behind the narrow capability
// interfaces already fixed by internal/session and internal/analysis.
//
// Grounded on the teacher's internal/agent package: where shelf drives a
// multi-iteration tool-calling loop via Agent/WorkUnit (NextWorkUnits /
// HandleLLMResult / HandleToolResult, executed by an external job runner),
// wenshape's agents are single-turn structured-output callers invoked
// synchronously from internal/session and internal/analysis — there is no
// job queue in this spec, so the WorkUnit indirection is collapsed into a
// direct blocking call. What's kept from the teacher is the shape of a
// role-bound agent (REDESIGN FLAGS' "enum Agent {Archivist,Writer,Editor,
// Extractor} with a dispatch table mapping to structs implementing a
// common capability set"), the mock-provider fallback policy
// (spec.md §6.5: "Absence of any LLM profile ⇒ gateway returns a
// deterministic mock which agents handle by falling back to rule-based
// paths"), and tool-parameter/structured-output JSON Schema validation
// (teacher's internal/providers/structured_output.go, now internal/schema).
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/wenshape/internal/apperr"
	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/schema"
)

// Kind names one of the four role-bound agents.
type Kind string

const (
	KindArchivist Kind = "archivist"
	KindWriter    Kind = "writer"
	KindEditor    Kind = "editor"
	KindExtractor Kind = "extractor"
)

// base is embedded by every concrete agent: it owns the LLM client, the
// model name to request, and the shared structured-output validator.
type base struct {
	kind     Kind
	llm      providers.LLMClient
	model    string
	schemas  *schema.Registry
	log      *slog.Logger
	maxChars int // truncates draft content passed into prompts
}

// Config wires one LLMClient to all four agents sharing a schema
// registry and logger, the way session.Config threads one *slog.Logger
// through the orchestrator.
type Config struct {
	LLM      providers.LLMClient
	Model    string
	Logger   *slog.Logger
	MaxChars int // 0 uses a sane default
}

func newBase(kind Kind, cfg Config) base {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 12000
	}
	registry := schema.NewRegistry()
	schema.MustRegisterAgentSchemas(registry)
	return base{kind: kind, llm: cfg.LLM, model: cfg.Model, schemas: registry, log: logger, maxChars: maxChars}
}

// isMock reports whether this agent's LLM client is the deterministic
// mock provider, the signal spec.md §6.5 uses to route to rule-based
// fallback paths instead of an LLM call.
func (b base) isMock() bool {
	return b.llm == nil || b.llm.Name() == providers.MockClientName
}

// chatJSON sends a single-turn system+user prompt, asking for a JSON
// object response, and validates the parsed response against schemaName
// before returning the raw decoded value. Callers unmarshal it into their
// own typed struct afterward (schema.Registry.Validate operates on
// already-decoded values, not a target struct, so this keeps decoding and
// validation as two small, separately testable steps).
func (b base) chatJSON(ctx context.Context, systemPrompt, userPrompt, schemaName string) (map[string]any, error) {
	req := &providers.ChatRequest{
		Model: b.model,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
	}

	result, err := b.llm.Chat(ctx, req)
	if err != nil {
		return nil, &apperr.AgentError{Agent: string(b.kind), Kind: apperr.AgentErrToolFailure, Err: err}
	}

	content := extractJSONObject(result.Content)
	doc, err := b.schemas.ValidateJSON(schemaName, []byte(content))
	if err != nil {
		return nil, &apperr.AgentError{Agent: string(b.kind), Kind: apperr.AgentErrInvalidOutput, Err: err}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &apperr.AgentError{Agent: string(b.kind), Kind: apperr.AgentErrInvalidOutput, Err: fmt.Errorf("response is not a JSON object")}
	}
	return obj, nil
}

// truncate bounds content to maxChars runes, the way the teacher's agent
// loop bounds image/page content sent to the LLM per iteration.
func (b base) truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= b.maxChars {
		return content
	}
	return string(runes[:b.maxChars]) + "..."
}

// extractJSONObject trims chat-model chatter around a JSON object, the
// same defensive pattern as structured_output.go's fenced-code stripping:
// models occasionally wrap JSON in ```json fences or add leading prose.
func extractJSONObject(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return trimmed
	}
	return trimmed[start : end+1]
}

// invalidOutput wraps a decode/shape error as an apperr.AgentError tagged
// AgentErrInvalidOutput, for failures that occur after schema validation
// already passed (e.g. a field decodes to the wrong Go type).
func invalidOutput(b base, err error) error {
	return &apperr.AgentError{Agent: string(b.kind), Kind: apperr.AgentErrInvalidOutput, Err: err}
}

// toolFailure wraps an LLM-call error as an apperr.AgentError tagged
// AgentErrToolFailure, for agent methods that call the LLM directly
// (bypassing chatJSON's own wrapping, e.g. Writer's plain-text path).
func toolFailure(b base, err error) error {
	return &apperr.AgentError{Agent: string(b.kind), Kind: apperr.AgentErrToolFailure, Err: err}
}

func decodeInto(obj map[string]any, target any) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
