// Package registry implements the ProviderRegistry auxiliary component
// (§2): it resolves an AgentConfig/RAGConfig's provider ids into concrete
// adapter instances. Adapted from the teacher's pkg/plugin.Registry —
// adapters are plain constructor functions keyed by (kind, id), not a
// reflection-based class registry (§9 design note).
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Kind enumerates the four provider capability contracts plus the two
// retrieval-layer ones.
type Kind string

const (
	KindVAD       Kind = "vad"
	KindSTT       Kind = "stt"
	KindLLM       Kind = "llm"
	KindTTS       Kind = "tts"
	KindVector    Kind = "vectorstore"
	KindEmbedding Kind = "embedding"
)

// Constructor builds a provider instance from its provider-specific config
// map (AgentConfig.LLMConfig, RAGConfig.VectorStoreConfig, ...). The
// returned value is cast by the caller to the expected pkg/provider
// interface.
type Constructor func(cfg map[string]any) (any, error)

// Registry is a process-wide map from (kind, provider id) to Constructor.
type Registry struct {
	mu  sync.RWMutex
	ctr map[Kind]map[string]Constructor
}

// New creates an empty registry. Most callers use Global instead.
func New() *Registry {
	return &Registry{ctr: make(map[Kind]map[string]Constructor)}
}

var global = New()

// Global returns the process-wide registry, initialised once at process
// start and populated by each plugin package's init() (§9: "initialise once
// at process start behind a single initialiser").
func Global() *Registry { return global }

// Register adds a constructor for (kind, id). Panics on duplicate
// registration, matching the teacher's plugin.Registry — a duplicate
// provider id is a build-time programming error, not a runtime condition.
func (r *Registry) Register(kind Kind, id string, ctor Constructor) {
	if id == "" {
		panic("registry: provider id cannot be empty")
	}
	if ctor == nil {
		panic("registry: constructor cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctr[kind] == nil {
		r.ctr[kind] = make(map[string]Constructor)
	}
	if _, exists := r.ctr[kind][id]; exists {
		panic(fmt.Sprintf("registry: %s/%s already registered", kind, id))
	}
	r.ctr[kind][id] = ctor
}

// Build resolves (kind, id) against its config map. Returns ErrUnknownProvider
// if nothing is registered for that pair.
func (r *Registry) Build(kind Kind, id string, cfg map[string]any) (any, error) {
	r.mu.RLock()
	ctor, ok := r.ctr[kind][id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProvider, kind, id)
	}
	return ctor(cfg)
}

// List returns all registered (kind, id) pairs, sorted, for operator
// introspection.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for kind, byID := range r.ctr {
		for id := range byID {
			out = append(out, string(kind)+"/"+id)
		}
	}
	sort.Strings(out)
	return out
}
