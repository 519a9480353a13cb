// Package memory is an in-process implementation of the persistence and
// collaborator ports. It backs the service test suites and the dev mode of
// the server, where no Postgres or gateway is reachable.
package memory

import (
	"context"
	"sync"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

type enrollKey struct {
	UserID int64
	ItemID int64
}

type redemptionKey struct {
	CodeID  int64
	UserID  int64
	OrderID int64
}

type state struct {
	seq int64

	carts      map[int64]*entity.Cart
	cartByUser map[int64]int64
	cartItems  map[int64]*entity.CartItem

	orders     map[int64]*entity.Order
	orderItems map[int64]*entity.OrderItem

	batches      map[int64]*entity.PaymentBatch
	batchMembers map[int64][]int64

	codes       map[int64]*entity.DiscountCode
	redemptions map[redemptionKey]bool

	items         map[entity.ItemRef]entity.Item
	enrollments   map[enrollKey]bool
	registrations map[enrollKey]bool
}

func newState() *state {
	return &state{
		carts:         make(map[int64]*entity.Cart),
		cartByUser:    make(map[int64]int64),
		cartItems:     make(map[int64]*entity.CartItem),
		orders:        make(map[int64]*entity.Order),
		orderItems:    make(map[int64]*entity.OrderItem),
		batches:       make(map[int64]*entity.PaymentBatch),
		batchMembers:  make(map[int64][]int64),
		codes:         make(map[int64]*entity.DiscountCode),
		redemptions:   make(map[redemptionKey]bool),
		items:         make(map[entity.ItemRef]entity.Item),
		enrollments:   make(map[enrollKey]bool),
		registrations: make(map[enrollKey]bool),
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

func (st *state) clone() *state {
	c := newState()
	c.seq = st.seq
	for k, v := range st.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range st.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range st.cartItems {
		c.cartItems[k] = copyCartItem(v)
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range st.orderItems {
		cp := *v
		c.orderItems[k] = &cp
	}
	for k, v := range st.batches {
		c.batches[k] = copyBatch(v)
	}
	for k, v := range st.batchMembers {
		c.batchMembers[k] = append([]int64(nil), v...)
	}
	for k, v := range st.codes {
		c.codes[k] = copyCode(v)
	}
	for k, v := range st.redemptions {
		c.redemptions[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range st.registrations {
		c.registrations[k] = v
	}
	return c
}

// Store holds everything behind one mutex. InTx serializes writers and
// restores a snapshot when fn fails, which gives the same
// all-or-nothing behavior callers get from a database transaction.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx ports.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(repos{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Carts() ports.CartRepository         { return cartRepo{repos{s: s}} }
func (s *Store) Orders() ports.OrderRepository       { return orderRepo{repos{s: s}} }
func (s *Store) Batches() ports.BatchRepository      { return batchRepo{repos{s: s}} }
func (s *Store) Discounts() ports.DiscountRepository { return discountRepo{repos{s: s}} }
func (s *Store) Catalog() ports.CatalogRepository    { return catalogRepo{repos{s: s}} }
func (s *Store) Fulfillment() ports.FulfillmentRepository {
	return fulfillmentRepo{repos{s: s}}
}

// repos is the shared base of every repository view. Methods on a view
// take the store lock unless they already run inside InTx.
type repos struct {
	s    *Store
	inTx bool
}

func (r repos) Carts() ports.CartRepository              { return cartRepo{r} }
func (r repos) Orders() ports.OrderRepository            { return orderRepo{r} }
func (r repos) Batches() ports.BatchRepository           { return batchRepo{r} }
func (r repos) Discounts() ports.DiscountRepository      { return discountRepo{r} }
func (r repos) Catalog() ports.CatalogRepository         { return catalogRepo{r} }
func (r repos) Fulfillment() ports.FulfillmentRepository { return fulfillmentRepo{r} }

func (r repos) enter() func() {
	if r.inTx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

// SeedItem registers or replaces a catalog item.
func (s *Store) SeedItem(it entity.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.items[it.Ref] = it
}

// SeedDiscount registers a discount code and returns its id.
func (s *Store) SeedDiscount(dc entity.DiscountCode) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dc.ID == 0 {
		dc.ID = s.st.nextID()
	}
	s.st.codes[dc.ID] = copyCode(&dc)
	return dc.ID
}

// Enrolled reports whether fulfillment recorded an enrollment or
// registration for the item.
func (s *Store) Enrolled(userID int64, ref entity.ItemRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollKey{UserID: userID, ItemID: ref.ID}
	switch ref.Kind {
	case entity.KindPresentation:
		return s.st.enrollments[key]
	case entity.KindSoloCompetition:
		return s.st.registrations[key]
	}
	return false
}

func copyCart(c *entity.Cart) *entity.Cart {
	d := *c
	if c.DiscountCodeID != nil {
		v := *c.DiscountCodeID
		d.DiscountCodeID = &v
	}
	return &d
}

func copyCartItem(ci *entity.CartItem) *entity.CartItem {
	d := *ci
	if ci.ReservedOrderID != nil {
		v := *ci.ReservedOrderID
		d.ReservedOrderID = &v
	}
	if ci.ReservedOrderItemID != nil {
		v := *ci.ReservedOrderItemID
		d.ReservedOrderItemID = &v
	}
	return &d
}

func copyOrder(o *entity.Order) *entity.Order {
	d := *o
	if o.DiscountCodeID != nil {
		v := *o.DiscountCodeID
		d.DiscountCodeID = &v
	}
	if o.PaidAt != nil {
		v := *o.PaidAt
		d.PaidAt = &v
	}
	return &d
}

func copyBatch(b *entity.PaymentBatch) *entity.PaymentBatch {
	d := *b
	if b.PaidAt != nil {
		v := *b.PaidAt
		d.PaidAt = &v
	}
	return &d
}

func copyCode(dc *entity.DiscountCode) *entity.DiscountCode {
	d := *dc
	if dc.ValidFrom != nil {
		v := *dc.ValidFrom
		d.ValidFrom = &v
	}
	if dc.ValidTo != nil {
		v := *dc.ValidTo
		d.ValidTo = &v
	}
	if dc.Target != nil {
		v := *dc.Target
		d.Target = &v
	}
	return &d
}

var _ ports.Store = (*Store)(nil)
