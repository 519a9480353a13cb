package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

// Lease is a process-local TTL lock with the same semantics as the Redis
// SET NX implementation.
type Lease struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLease() *Lease {
	return &Lease{held: make(map[string]time.Time), clock: time.Now}
}

func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *Lease) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Mailer records outgoing mail instead of sending it.
type Mailer struct {
	mu   sync.Mutex
	Sent []SentMail
}

type SentMail struct {
	Subject string
	To      []string
	Text    string
	HTML    string
}

func NewMailer() *Mailer { return &Mailer{} }

func (m *Mailer) Send(ctx context.Context, subject string, to []string, text, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{Subject: subject, To: to, Text: text, HTML: html})
	return nil
}

// Snapshot returns a copy of the sent mail, safe to read while senders run.
func (m *Mailer) Snapshot() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.Sent...)
}

// Users is a fixed user directory.
type Users struct {
	mu    sync.Mutex
	users map[int64]ports.User
}

func NewUsers() *Users {
	return &Users{users: make(map[int64]ports.User)}
}

func (u *Users) Add(user ports.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.ID] = user
}

func (u *Users) Lookup(ctx context.Context, userID int64) (*ports.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[userID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &user, nil
}

var (
	_ ports.Lease         = (*Lease)(nil)
	_ ports.Mailer        = (*Mailer)(nil)
	_ ports.UserDirectory = (*Users)(nil)
)
