package sessionmanager

import (
	"fmt"

	"github.com/chriscow/voicecore/internal/chathistory"
	"github.com/chriscow/voicecore/internal/chatengine"
	"github.com/chriscow/voicecore/internal/retrieval"
	"github.com/chriscow/voicecore/internal/session"
	"github.com/chriscow/voicecore/pkg/provider"
	"github.com/chriscow/voicecore/pkg/registry"
)

// Resolver builds session.Deps from an AgentConfig by asking the
// ProviderRegistry to construct each capability adapter. Kept as an
// interface (rather than a free function) so tests substitute a resolver
// backed by pkg/provider/fake constructors without touching the global
// registry (§9: registry resolution happens per-session at runtime).
type Resolver interface {
	Resolve(agentCfg provider.AgentConfig, counter chathistory.TokenCounter, metrics *session.Metrics) (session.Deps, error)
}

// RegistryResolver is the production Resolver, backed by a
// registry.Registry (normally registry.Global()).
type RegistryResolver struct {
	Registry       *registry.Registry
	RetrievalCache *retrieval.QueryCache
	VADProviderID  string
	VADConfig      map[string]any
}

// Resolve builds one session's VAD/STT/LLM/TTS/Retriever adapters from
// agentCfg, returning ErrConfigInvalid if the STT/LLM/TTS triple cannot
// be constructed (§4.1: "ConfigInvalid if agent_config resolution yields
// no STT/LLM/TTS triple").
func (r *RegistryResolver) Resolve(agentCfg provider.AgentConfig, counter chathistory.TokenCounter, metrics *session.Metrics) (session.Deps, error) {
	reg := r.Registry
	if reg == nil {
		reg = registry.Global()
	}

	vadAny, err := reg.Build(registry.KindVAD, r.VADProviderID, r.VADConfig)
	if err != nil {
		return session.Deps{}, fmt.Errorf("%w: vad: %s", ErrConfigInvalid, err)
	}
	vad, ok := vadAny.(provider.VAD)
	if !ok {
		return session.Deps{}, fmt.Errorf("%w: vad provider %q does not implement provider.VAD", ErrConfigInvalid, r.VADProviderID)
	}

	sttAny, err := reg.Build(registry.KindSTT, agentCfg.STTProviderID, agentCfg.STTConfig)
	if err != nil {
		return session.Deps{}, fmt.Errorf("%w: stt: %s", ErrConfigInvalid, err)
	}
	stt, ok := sttAny.(provider.STT)
	if !ok {
		return session.Deps{}, fmt.Errorf("%w: stt provider %q does not implement provider.STT", ErrConfigInvalid, agentCfg.STTProviderID)
	}

	llmAny, err := reg.Build(registry.KindLLM, agentCfg.LLMProviderID, agentCfg.LLMConfig)
	if err != nil {
		return session.Deps{}, fmt.Errorf("%w: llm: %s", ErrConfigInvalid, err)
	}
	llm, ok := llmAny.(provider.LLM)
	if !ok {
		return session.Deps{}, fmt.Errorf("%w: llm provider %q does not implement provider.LLM", ErrConfigInvalid, agentCfg.LLMProviderID)
	}

	ttsAny, err := reg.Build(registry.KindTTS, agentCfg.TTSProviderID, agentCfg.TTSConfig)
	if err != nil {
		return session.Deps{}, fmt.Errorf("%w: tts: %s", ErrConfigInvalid, err)
	}
	tts, ok := ttsAny.(provider.TTS)
	if !ok {
		return session.Deps{}, fmt.Errorf("%w: tts provider %q does not implement provider.TTS", ErrConfigInvalid, agentCfg.TTSProviderID)
	}

	deps := session.Deps{
		VAD:     vad,
		STT:     stt,
		LLM:     llm,
		TTS:     tts,
		Counter: counter,
		Metrics: metrics,
	}

	if agentCfg.RAG != nil {
		retriever, err := r.resolveRetriever(*agentCfg.RAG, counter)
		if err != nil {
			// Retrieval is auxiliary (§2): a bad RAG config degrades the
			// session to no-retrieval rather than failing Create, since the
			// STT/LLM/TTS triple alone satisfies ConfigInvalid's contract.
			deps.Retriever = nil
		} else {
			deps.Retriever = retriever
		}
	}

	return deps, nil
}

func (r *RegistryResolver) resolveRetriever(rag provider.RAGConfig, counter chathistory.TokenCounter) (chatengine.Retriever, error) {
	reg := r.Registry
	if reg == nil {
		reg = registry.Global()
	}

	embAny, err := reg.Build(registry.KindEmbedding, rag.EmbeddingProviderID, rag.EmbeddingConfig)
	if err != nil {
		return nil, err
	}
	emb, ok := embAny.(provider.Embedding)
	if !ok {
		return nil, fmt.Errorf("embedding provider %q does not implement provider.Embedding", rag.EmbeddingProviderID)
	}

	vecAny, err := reg.Build(registry.KindVector, rag.VectorStoreProviderID, rag.VectorStoreConfig)
	if err != nil {
		return nil, err
	}
	vec, ok := vecAny.(provider.VectorStore)
	if !ok {
		return nil, fmt.Errorf("vector store provider %q does not implement provider.VectorStore", rag.VectorStoreProviderID)
	}

	cfg := retrieval.Config{
		TopK:              rag.TopK,
		DenseCandidates:   rag.DenseCandidates,
		LexicalCandidates: rag.LexicalCandidates,
		UltraLowLatency:   rag.UltraLowLatency,
	}

	var cache *retrieval.QueryCache
	if rag.UltraLowLatency {
		cache = r.RetrievalCache
	}

	// A vector store provider may also satisfy LexicalSearch (e.g.
	// plugins/pgvector's Store, which runs full-text search against the
	// same chunks table) — use it when available instead of forcing a
	// separate provider id (§4.6: "optionally combine with a lexical
	// candidate set of the same size").
	lexical, _ := vecAny.(provider.LexicalSearch)

	return retrieval.New(emb, vec, lexical, counter, cache, cfg, nil), nil
}
