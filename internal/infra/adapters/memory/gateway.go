package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

// Gateway is a scripted payment provider. By default every create succeeds
// with a sequential authority and every verify succeeds with a derived
// transaction id; tests flip the error fields to exercise failure paths.
type Gateway struct {
	mu  sync.Mutex
	seq int

	CreateErr error
	VerifyErr error

	Requests    []ports.PaymentRequest
	VerifyCalls map[string]int
	Pending     []string // returned by ListUnverified
}

func NewGateway() *Gateway {
	return &Gateway{VerifyCalls: make(map[string]int)}
}

func (g *Gateway) CreatePayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.seq++
	authority := fmt.Sprintf("A%06d", g.seq)
	return &ports.PaymentSession{
		Authority:   authority,
		RedirectURL: "https://gateway.test/start/" + authority,
	}, nil
}

func (g *Gateway) VerifyPayment(ctx context.Context, authority string, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.VerifyCalls[authority]++
	if g.VerifyErr != nil {
		return "", g.VerifyErr
	}
	return "TXN-" + authority, nil
}

func (g *Gateway) ListUnverified(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Pending...), nil
}

var _ ports.Gateway = (*Gateway)(nil)
