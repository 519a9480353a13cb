// Package postgres implements the persistence ports on PostgreSQL. Row
// locking (SELECT ... FOR UPDATE) backs the reservation and finalize
// guarantees, so nothing here works on databases without it.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

// querier is the subset of sql.DB and sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects and verifies the database is reachable.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx ports.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(repos{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Carts() ports.CartRepository              { return cartRepo{repos{q: s.db}} }
func (s *Store) Orders() ports.OrderRepository            { return orderRepo{repos{q: s.db}} }
func (s *Store) Batches() ports.BatchRepository           { return batchRepo{repos{q: s.db}} }
func (s *Store) Discounts() ports.DiscountRepository      { return discountRepo{repos{q: s.db}} }
func (s *Store) Catalog() ports.CatalogRepository         { return catalogRepo{repos{q: s.db}} }
func (s *Store) Fulfillment() ports.FulfillmentRepository { return fulfillmentRepo{repos{q: s.db}} }

type repos struct {
	q querier
}

func (r repos) Carts() ports.CartRepository              { return cartRepo{r} }
func (r repos) Orders() ports.OrderRepository            { return orderRepo{r} }
func (r repos) Batches() ports.BatchRepository           { return batchRepo{r} }
func (r repos) Discounts() ports.DiscountRepository      { return discountRepo{r} }
func (r repos) Catalog() ports.CatalogRepository         { return catalogRepo{r} }
func (r repos) Fulfillment() ports.FulfillmentRepository { return fulfillmentRepo{r} }

var _ ports.Store = (*Store)(nil)
