package config

import "strings"

// RAGConfig configures the retrieve(query, user_id, corpus_id?, top_k?)
// collaborator the orchestrator may call before the LLM step. The
// collaborator itself is consumed, not implemented, by this gateway.
type RAGConfig struct {
	Enabled    bool                `yaml:"enabled"`
	Embeddings RAGEmbeddingsConfig `yaml:"embeddings"`
	Search     RAGSearchConfig     `yaml:"search"`
}

// RAGEmbeddingsConfig configures the embedding provider backing retrieval.
type RAGEmbeddingsConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
}

// RAGSearchConfig configures default search behavior.
type RAGSearchConfig struct {
	DefaultLimit     int     `yaml:"default_limit"`
	DefaultThreshold float32 `yaml:"default_threshold"`
}

func applyRAGDefaults(cfg *RAGConfig) {
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.DefaultThreshold == 0 {
		cfg.Search.DefaultThreshold = 0.7
	}
}

func validateRAG(cfg *RAGConfig) []string {
	var issues []string
	if cfg.Enabled && strings.TrimSpace(cfg.Embeddings.Provider) == "" {
		issues = append(issues, "rag.embeddings.provider is required when rag.enabled is true")
	}
	if cfg.Search.DefaultLimit < 0 {
		issues = append(issues, "rag.search.default_limit must be >= 0")
	}
	return issues
}
