package ports

import (
	"context"
	"fmt"
)

// PaymentRequest is the input to Gateway.CreatePayment. ReferenceID is the
// order or batch UUID, passed through as gateway metadata.
type PaymentRequest struct {
	Amount      int64
	Email       string
	Mobile      string
	ReferenceID string
}

// PaymentSession is a successfully opened payment attempt.
type PaymentSession struct {
	Authority   string
	RedirectURL string
}

// Gateway wraps the payment provider's three operations. No retries happen
// at this layer; the reconciliation sweep owns retry policy. Implementations
// distinguish a provider rejection (*GatewayError) from not reaching the
// provider at all (*GatewayUnreachableError); the latter means the outcome
// is unknown and must be reconciled later.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	// VerifyPayment returns the provider transaction id. Safe to call more
	// than once for the same authority.
	VerifyPayment(ctx context.Context, authority string, amount int64) (string, error)
	// ListUnverified returns the authorities the provider considers paid but
	// unverified. Used only by the sweep.
	ListUnverified(ctx context.Context) ([]string, error)
}

// GatewayError is a rejection the provider itself reported.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway rejected request: %s", e.Message)
}

// GatewayUnreachableError is a network or malformed-response failure: the
// call may or may not have taken effect on the provider side.
type GatewayUnreachableError struct {
	Err error
}

func (e *GatewayUnreachableError) Error() string {
	return fmt.Sprintf("gateway unreachable: %v", e.Err)
}

func (e *GatewayUnreachableError) Unwrap() error { return e.Err }
