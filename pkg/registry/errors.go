package registry

import "errors"

// ErrUnknownProvider is returned by Build when no constructor is registered
// for the requested (kind, id) pair — typically a misconfigured AgentConfig
// or RAGConfig provider id.
var ErrUnknownProvider = errors.New("registry: unknown provider")
