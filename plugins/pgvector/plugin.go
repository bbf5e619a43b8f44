package pgvector

import (
	"context"

	"github.com/chriscow/voicecore/pkg/registry"
)

func dsnFromConfig(cfg map[string]any) string {
	if v, ok := cfg["dsn"].(string); ok {
		return v
	}
	return ""
}

// init registers the pgvector-backed store under provider id "pgvector" for
// both KindVector and, since *Store also implements provider.LexicalSearch,
// the retrieval resolver type-asserts the same instance for lexical search
// (see internal/sessionmanager/resolver.go's optional LexicalSearch lookup).
func init() {
	registry.Global().Register(registry.KindVector, "pgvector", func(cfg map[string]any) (any, error) {
		return Open(context.Background(), dsnFromConfig(cfg))
	})
}
