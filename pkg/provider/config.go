package provider

// AgentConfig is the record consumed from the (external) agent-configuration
// store, resolved once at session create and never re-read during the
// session (§6).
type AgentConfig struct {
	SystemPrompt string

	LLMProviderID string
	LLMConfig     map[string]any

	STTProviderID string
	STTConfig     map[string]any

	TTSProviderID string
	TTSConfig     map[string]any

	// RAG is nil when the agent has no retrieval configured.
	RAG *RAGConfig
}

// RAGConfig is the record consumed from the (external) RAG-configuration
// store (§6).
type RAGConfig struct {
	VectorStoreProviderID string
	VectorStoreConfig     map[string]any

	EmbeddingProviderID string
	EmbeddingConfig     map[string]any

	TopK             int
	DenseCandidates  int
	LexicalCandidates int
	UltraLowLatency  bool
}
