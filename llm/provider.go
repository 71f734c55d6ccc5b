package llm

import "context"

// Completer is the model-completion collaborator boundary. Any backend with
// equivalent semantics satisfies it: full history in, ordered content blocks
// out, one call per loop round.
type Completer interface {
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Closer is implemented by backends that hold resources.
type Closer interface {
	Close() error
}
