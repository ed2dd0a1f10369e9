package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("greeting", []byte(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)))

	require.NoError(t, r.Validate("greeting", map[string]any{"name": "Lin Feng"}))
	require.Error(t, r.Validate("greeting", map[string]any{}))
}

func TestValidateUnregisteredSchemaErrors(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Validate("missing", map[string]any{}))
}

func TestValidateJSONDecodesAndValidates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("greeting", []byte(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)))

	doc, err := r.ValidateJSON("greeting", []byte(`{"name":"Mei"}`))
	require.NoError(t, err)
	require.Equal(t, "Mei", doc.(map[string]any)["name"])

	_, err = r.ValidateJSON("greeting", []byte(`not json`))
	require.Error(t, err)
}

func TestMustRegisterAgentSchemasCompilesCleanly(t *testing.T) {
	r := NewRegistry()
	require.NotPanics(t, func() { MustRegisterAgentSchemas(r) })

	require.NoError(t, r.Validate(SceneBrief, map[string]any{"title": "t", "goal": "g"}))
	require.NoError(t, r.Validate(CardProposals, map[string]any{"proposals": []any{}}))
	require.NoError(t, r.Validate(CanonExtraction, map[string]any{}))
	require.NoError(t, r.Validate(ChapterSummary, map[string]any{"brief_summary": "s"}))
	require.NoError(t, r.Validate(VolumeSummary, map[string]any{"brief_summary": "s"}))
}
