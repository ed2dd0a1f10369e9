package schema

import "encoding/json"

// Agent-facing schema names, registered by internal/agents via
// MustRegisterAgentSchemas.
const (
	SceneBrief      = "scene_brief"
	CardProposals   = "card_proposals"
	CanonExtraction = "canon_extraction"
	ChapterSummary  = "chapter_summary"
	VolumeSummary   = "volume_summary"
)

var agentSchemas = map[string]json.RawMessage{
	SceneBrief: json.RawMessage(`{
		"type": "object",
		"required": ["title", "goal"],
		"properties": {
			"title": {"type": "string"},
			"goal": {"type": "string"},
			"characters": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["name"],
					"properties": {
						"name": {"type": "string"},
						"relevant_traits": {"type": "array", "items": {"type": "string"}}
					}
				}
			},
			"world_constraints": {"type": "array", "items": {"type": "string"}},
			"style_reminder": {"type": "string"},
			"forbidden": {"type": "array", "items": {"type": "string"}},
			"questions": {"type": "array", "items": {"type": "string"}},
			"needs_user_input": {"type": "boolean"}
		}
	}`),
	CardProposals: json.RawMessage(`{
		"type": "object",
		"required": ["proposals"],
		"properties": {
			"proposals": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["type", "name"],
					"properties": {
						"type": {"type": "string", "enum": ["character", "world"]},
						"name": {"type": "string"},
						"description": {"type": "string"},
						"aliases": {"type": "array", "items": {"type": "string"}},
						"category": {"type": "string"},
						"rules": {"type": "array", "items": {"type": "string"}},
						"confidence": {"type": "number"}
					}
				}
			}
		}
	}`),
	CanonExtraction: json.RawMessage(`{
		"type": "object",
		"properties": {
			"facts": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["statement"],
					"properties": {
						"statement": {"type": "string"},
						"confidence": {"type": "number"}
					}
				}
			},
			"timeline": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["time", "event"],
					"properties": {
						"time": {"type": "string"},
						"event": {"type": "string"},
						"location": {"type": "string"},
						"participants": {"type": "array", "items": {"type": "string"}}
					}
				}
			},
			"states": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["character"],
					"properties": {
						"character": {"type": "string"},
						"location": {"type": "string"},
						"emotional_state": {"type": "string"},
						"goals": {"type": "array", "items": {"type": "string"}},
						"injuries": {"type": "array", "items": {"type": "string"}},
						"inventory": {"type": "array", "items": {"type": "string"}}
					}
				}
			},
			"proposals": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["type", "name"],
					"properties": {
						"type": {"type": "string"},
						"name": {"type": "string"},
						"description": {"type": "string"}
					}
				}
			},
			"focus_names": {"type": "array", "items": {"type": "string"}}
		}
	}`),
	ChapterSummary: json.RawMessage(`{
		"type": "object",
		"required": ["brief_summary"],
		"properties": {
			"title": {"type": "string"},
			"brief_summary": {"type": "string"},
			"key_events": {"type": "array", "items": {"type": "string"}},
			"new_facts": {"type": "array", "items": {"type": "string"}},
			"character_state_changes": {"type": "array", "items": {"type": "string"}},
			"open_loops": {"type": "array", "items": {"type": "string"}}
		}
	}`),
	VolumeSummary: json.RawMessage(`{
		"type": "object",
		"required": ["brief_summary"],
		"properties": {
			"brief_summary": {"type": "string"},
			"key_events": {"type": "array", "items": {"type": "string"}}
		}
	}`),
}

// MustRegisterAgentSchemas registers every schema internal/agents needs
// into r, panicking on malformed schema literals (a programmer error, not
// a runtime condition).
func MustRegisterAgentSchemas(r *Registry) {
	for name, raw := range agentSchemas {
		if err := r.Register(name, raw); err != nil {
			panic(err)
		}
	}
}
