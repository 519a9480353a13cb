package ports

import (
	"context"
	"time"
)

// Lease is a distributed TTL mutex, used so only one sweep runs at a time.
type Lease interface {
	// Acquire returns false when another holder owns the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Mailer sends transactional email. Best effort, never awaited by the
// payment flow.
type Mailer interface {
	Send(ctx context.Context, subject string, to []string, text, html string) error
}

// User is the authenticated identity attached to each request.
type User struct {
	ID    int64
	Email string
	Phone string
}

// UserDirectory looks up contact details for users acting outside a request,
// such as the reconciliation sweep completing an order on their behalf.
type UserDirectory interface {
	Lookup(ctx context.Context, userID int64) (*User, error)
}
