package provider

import "context"

// ChatPayload is a single system/user exchange. Symbol only tags transcripts.
type ChatPayload struct {
	System      string
	User        string
	Symbol      string
	MaxTokens   int
	Temperature float64
}

type ModelProvider interface {
	ID() string
	Enabled() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}

// HealthChecker is implemented by providers that can probe their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}
