package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGetLLM(t *testing.T) {
	r := NewRegistry()
	client := NewMockClient()
	r.RegisterLLM("mock", client)

	got, err := r.GetLLM("mock")
	require.NoError(t, err)
	assert.Equal(t, client, got)
	assert.True(t, r.HasLLM("mock"))
	assert.Contains(t, r.ListLLM(), "mock")
}

func TestRegistryGetLLMNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.GetLLM("missing")
	require.ErrorIs(t, err, ErrLLMNotFound)
}

func TestRegistryUnregisterLLM(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM("mock", NewMockClient())
	r.UnregisterLLM("mock")
	assert.False(t, r.HasLLM("mock"))
}

func TestNewRegistryFromConfigSkipsDisabledAndMissingKeys(t *testing.T) {
	cfg := RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"disabled": {Type: "openai", Enabled: false, APIKey: "x"},
		"no-key":   {Type: "openai", Enabled: true},
		"mock":     {Type: "mock", Enabled: true},
	}}
	r := NewRegistryFromConfig(cfg)

	assert.False(t, r.HasLLM("disabled"))
	assert.False(t, r.HasLLM("no-key"))
	assert.True(t, r.HasLLM("mock"))
}

func TestRegistryReloadAddsAndRemoves(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"mock": {Type: "mock", Enabled: true},
	}})
	require.True(t, r.HasLLM("mock"))

	r.Reload(RegistryConfig{LLMProviders: map[string]LLMProviderConfig{
		"mock-2": {Type: "mock", Enabled: true},
	}})

	assert.False(t, r.HasLLM("mock"))
	assert.True(t, r.HasLLM("mock-2"))
}

func TestRegistryLLMClientsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.RegisterLLM("a", NewMockClient())
	r.RegisterLLM("b", NewMockClient())

	snapshot := r.LLMClients()
	assert.Len(t, snapshot, 2)
}
