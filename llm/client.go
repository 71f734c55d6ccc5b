package llm

import "context"

// Client wraps a Completer with retry handling. It is the handle AgentLoop
// holds; the underlying backend is replaceable (tests install doubles).
type Client struct {
	backend Completer
	retry   RetryPolicy
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a Client around the given backend.
func NewClient(backend Completer, opts ...ClientOption) *Client {
	c := &Client{
		backend: backend,
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the backend's provider identifier.
func (c *Client) Provider() string {
	return c.backend.Name()
}

// Complete sends the request to the backend, retrying transient failures
// per the configured policy. Non-retryable errors surface immediately.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	return Retry(ctx, c.retry, func(ctx context.Context) (*Response, error) {
		return c.backend.Complete(ctx, req)
	})
}

// Close releases backend resources, if any.
func (c *Client) Close() error {
	if closer, ok := c.backend.(Closer); ok {
		return closer.Close()
	}
	return nil
}
