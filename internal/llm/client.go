package llm

import "context"

// Options are the caller-tunable parameters for one completion request.
type Options struct {
	Temperature     float32
	MaxOutputTokens int
}

// Client is a stateless text-completion call against a hosted model.
// Implementations return *pkg.RemoteServiceError on timeout or a
// non-success upstream status; a completion is never partially consumed.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}
