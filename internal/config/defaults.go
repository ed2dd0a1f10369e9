package config

// DefaultConfig returns configuration with sensible defaults, matching the
// numeric defaults spec.md names explicitly (context window 128k, output
// reserve ratio, budget ratios of §4.6.1, quotas of §4.3).
func DefaultConfig() *Config {
	return &Config{
		Host:    "127.0.0.1",
		Port:    8080,
		DataDir: "data",

		LLMProviders: map[string]ProviderConfig{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Enabled:   true,
			},
			"mock": {
				Type:      "mock",
				Model:     "mock-writer",
				RateLimit: 1000,
				Enabled:   true,
			},
		},
		DefaultLLM: "mock",
		WriterLLM:  "mock",

		ContextWindow:   128_000,
		MaxOutputTokens: 8_000,
		BudgetRatios: BudgetRatios{
			SystemRules:   0.05,
			Cards:         0.15,
			Canon:         0.10,
			Summaries:     0.20,
			CurrentDraft:  0.30,
			OutputReserve: 0.20,
		},

		Quotas: map[string]Quota{
			"fact":         {Min: 3, Max: 8},
			"summary":      {Min: 1, Max: 6},
			"text_chunk":   {Min: 3, Max: 8},
			"character":    {Min: 0, Max: 6},
			"world_rule":   {Min: 2, Max: 6},
			"world_entity": {Min: 1, Max: 6},
			"world":        {Min: 0, Max: 2},
			"style":        {Min: 0, Max: 1},
			"memory":       {Min: 0, Max: 4},
		},

		MaxResearchRounds: 5,
		HistoryKeep:       3,
		DebugAgents:       false,
	}
}
