package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/wenshape/internal/providers"
)

func TestGetProviderForAgentFallsBackToMockWithoutConfig(t *testing.T) {
	g := New(nil, nil, nil)
	require.Equal(t, MockProviderID, g.GetProviderForAgent("archivist"))
	require.Equal(t, MockProviderID, g.GetProviderForAgent("writer"))
}

func TestClientForAgentReturnsMockWhenUnresolvable(t *testing.T) {
	g := New(nil, nil, nil)
	client := g.ClientForAgent("editor")
	require.Equal(t, providers.MockClientName, client.Name())
}

func TestGetProfileByIDMockAlwaysSatisfiable(t *testing.T) {
	g := New(nil, nil, nil)
	profile, ok := g.GetProfileByID(MockProviderID)
	require.True(t, ok)
	require.Equal(t, "mock", profile.Type)
}

func TestGetProviderForAgentIgnoresRegistryWithoutConfig(t *testing.T) {
	registry := providers.NewRegistry()
	fake := providers.NewMockClient()
	registry.RegisterLLM("openai-default", fake)

	g := New(registry, nil, nil)
	// No config manager means GetProviderForAgent always falls back to mock
	// regardless of what's registered; this documents that wiring.
	require.Equal(t, MockProviderID, g.GetProviderForAgent("archivist"))
}
