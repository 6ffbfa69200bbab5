package quarry

import "context"

// Provider abstracts the model endpoint. Implementations make a single
// network call per Complete and must honor ctx cancellation; failures
// surface as *ErrModel.
type Provider interface {
	// Complete sends one prompt and returns the model's text.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	// Name returns the provider name (e.g. "openai").
	Name() string
}

// CompleteFunc adapts a plain function to the Provider interface.
// Useful for fakes in tests and for one-off wrappers.
type CompleteFunc func(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

func (f CompleteFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f(ctx, req)
}

func (f CompleteFunc) Name() string { return "func" }
