package health

import "context"

// StorePinger checks record snapshot backend availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CompletionChecker checks chat-completion provider availability.
type CompletionChecker interface {
	HealthCheck(ctx context.Context) error
}
