package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

type cartRepo struct{ repos }

func (r cartRepo) GetOrCreate(ctx context.Context, userID int64) (*entity.Cart, error) {
	defer r.enter()()
	st := r.s.st
	if id, ok := st.cartByUser[userID]; ok {
		return copyCart(st.carts[id]), nil
	}
	cart := &entity.Cart{ID: st.nextID(), UserID: userID, CreatedAt: time.Now()}
	st.carts[cart.ID] = cart
	st.cartByUser[userID] = cart.ID
	return copyCart(cart), nil
}

func (r cartRepo) SetDiscount(ctx context.Context, cartID int64, codeID *int64) error {
	defer r.enter()()
	cart, ok := r.s.st.carts[cartID]
	if !ok {
		return ports.ErrNotFound
	}
	if codeID == nil {
		cart.DiscountCodeID = nil
	} else {
		v := *codeID
		cart.DiscountCodeID = &v
	}
	return nil
}

func (r cartRepo) Items(ctx context.Context, cartID int64) ([]entity.CartItem, error) {
	defer r.enter()()
	return r.itemsLocked(cartID, nil), nil
}

func (r cartRepo) ItemsForUpdate(ctx context.Context, cartID int64, ids []int64) ([]entity.CartItem, error) {
	defer r.enter()()
	return r.itemsLocked(cartID, ids), nil
}

func (r cartRepo) itemsLocked(cartID int64, ids []int64) []entity.CartItem {
	var wanted map[int64]bool
	if ids != nil {
		wanted = make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}
	var out []entity.CartItem
	for _, ci := range r.s.st.cartItems {
		if ci.CartID != cartID {
			continue
		}
		if wanted != nil && !wanted[ci.ID] {
			continue
		}
		out = append(out, *copyCartItem(ci))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r cartRepo) GetItem(ctx context.Context, cartID, itemID int64) (*entity.CartItem, error) {
	defer r.enter()()
	ci, ok := r.s.st.cartItems[itemID]
	if !ok || ci.CartID != cartID {
		return nil, ports.ErrNotFound
	}
	return copyCartItem(ci), nil
}

func (r cartRepo) FindItem(ctx context.Context, cartID int64, ref entity.ItemRef) (*entity.CartItem, error) {
	defer r.enter()()
	for _, ci := range r.s.st.cartItems {
		if ci.CartID == cartID && ci.Ref == ref {
			return copyCartItem(ci), nil
		}
	}
	return nil, nil
}

func (r cartRepo) AddItem(ctx context.Context, item *entity.CartItem) error {
	defer r.enter()()
	item.ID = r.s.st.nextID()
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	r.s.st.cartItems[item.ID] = copyCartItem(item)
	return nil
}

func (r cartRepo) UpdateItem(ctx context.Context, item *entity.CartItem) error {
	defer r.enter()()
	if _, ok := r.s.st.cartItems[item.ID]; !ok {
		return ports.ErrNotFound
	}
	r.s.st.cartItems[item.ID] = copyCartItem(item)
	return nil
}

func (r cartRepo) DeleteItem(ctx context.Context, itemID int64) error {
	defer r.enter()()
	delete(r.s.st.cartItems, itemID)
	return nil
}

func (r cartRepo) ItemsReservedBy(ctx context.Context, orderID int64) ([]entity.CartItem, error) {
	defer r.enter()()
	return r.reservedByLocked(orderID), nil
}

func (r cartRepo) reservedByLocked(orderID int64) []entity.CartItem {
	order, ok := r.s.st.orders[orderID]
	if !ok {
		return nil
	}
	var out []entity.CartItem
	for _, ci := range r.s.st.cartItems {
		if ci.ReservedOrderID != nil && *ci.ReservedOrderID == order.OrderID {
			out = append(out, *copyCartItem(ci))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r cartRepo) DeleteItemsReservedBy(ctx context.Context, orderID int64) error {
	defer r.enter()()
	for _, ci := range r.reservedByLocked(orderID) {
		delete(r.s.st.cartItems, ci.ID)
	}
	return nil
}

func (r cartRepo) ClearItems(ctx context.Context, cartID int64) error {
	defer r.enter()()
	for id, ci := range r.s.st.cartItems {
		if ci.CartID == cartID {
			delete(r.s.st.cartItems, id)
		}
	}
	return nil
}

type orderRepo struct{ repos }

func (r orderRepo) Create(ctx context.Context, o *entity.Order) error {
	defer r.enter()()
	o.ID = r.s.st.nextID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	r.s.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (r orderRepo) CreateItem(ctx context.Context, item *entity.OrderItem) error {
	defer r.enter()()
	item.ID = r.s.st.nextID()
	cp := *item
	r.s.st.orderItems[item.ID] = &cp
	return nil
}

func (r orderRepo) Items(ctx context.Context, orderID int64) ([]entity.OrderItem, error) {
	defer r.enter()()
	var out []entity.OrderItem
	for _, oi := range r.s.st.orderItems {
		if oi.OrderID == orderID {
			out = append(out, *oi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r orderRepo) ByOrderID(ctx context.Context, userID int64, orderID uuid.UUID) (*entity.Order, error) {
	defer r.enter()()
	for _, o := range r.s.st.orders {
		if o.UserID == userID && o.OrderID == orderID {
			return copyOrder(o), nil
		}
	}
	return nil, ports.ErrNotFound
}

func (r orderRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Order, error) {
	defer r.enter()()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r orderRepo) Update(ctx context.Context, o *entity.Order) error {
	defer r.enter()()
	if _, ok := r.s.st.orders[o.ID]; !ok {
		return ports.ErrNotFound
	}
	r.s.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (r orderRepo) ListByUser(ctx context.Context, userID int64) ([]entity.Order, error) {
	defer r.enter()()
	var out []entity.Order
	for _, o := range r.s.st.orders {
		if o.UserID == userID {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r orderRepo) FindByAuthority(ctx context.Context, authority string) (*entity.Order, error) {
	defer r.enter()()
	if authority == "" {
		return nil, nil
	}
	for _, o := range r.s.st.orders {
		if o.GatewayAuthority == authority {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (r orderRepo) HasUnpaidForItem(ctx context.Context, userID int64, ref entity.ItemRef) (bool, error) {
	defer r.enter()()
	for _, o := range r.s.st.orders {
		if o.UserID != userID {
			continue
		}
		switch o.Status {
		case entity.OrderPendingPayment, entity.OrderAwaitingRedirect, entity.OrderPaymentFailed:
		default:
			continue
		}
		for _, oi := range r.s.st.orderItems {
			if oi.OrderID == o.ID && oi.Ref == ref {
				return true, nil
			}
		}
	}
	return false, nil
}

type batchRepo struct{ repos }

func (r batchRepo) Create(ctx context.Context, b *entity.PaymentBatch, memberOrderIDs []int64) error {
	defer r.enter()()
	b.ID = r.s.st.nextID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	r.s.st.batches[b.ID] = copyBatch(b)
	r.s.st.batchMembers[b.ID] = append([]int64(nil), memberOrderIDs...)
	return nil
}

func (r batchRepo) GetForUpdate(ctx context.Context, id int64) (*entity.PaymentBatch, error) {
	defer r.enter()()
	b, ok := r.s.st.batches[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return copyBatch(b), nil
}

func (r batchRepo) Update(ctx context.Context, b *entity.PaymentBatch) error {
	defer r.enter()()
	if _, ok := r.s.st.batches[b.ID]; !ok {
		return ports.ErrNotFound
	}
	r.s.st.batches[b.ID] = copyBatch(b)
	return nil
}

func (r batchRepo) FindByAuthority(ctx context.Context, authority string) (*entity.PaymentBatch, error) {
	defer r.enter()()
	if authority == "" {
		return nil, nil
	}
	for _, b := range r.s.st.batches {
		if b.GatewayAuthority == authority {
			return copyBatch(b), nil
		}
	}
	return nil, nil
}

func (r batchRepo) MemberOrderIDs(ctx context.Context, batchID int64) ([]int64, error) {
	defer r.enter()()
	return append([]int64(nil), r.s.st.batchMembers[batchID]...), nil
}

func (r batchRepo) FindActiveForOrder(ctx context.Context, orderID int64) (*entity.PaymentBatch, error) {
	defer r.enter()()
	for batchID, members := range r.s.st.batchMembers {
		for _, id := range members {
			if id != orderID {
				continue
			}
			b := r.s.st.batches[batchID]
			switch b.Status {
			case entity.BatchAwaitingRedirect, entity.BatchVerified, entity.BatchCompleted:
				return copyBatch(b), nil
			}
		}
	}
	return nil, nil
}

type discountRepo struct{ repos }

func (r discountRepo) FindByCode(ctx context.Context, code string) (*entity.DiscountCode, error) {
	defer r.enter()()
	for _, dc := range r.s.st.codes {
		if strings.EqualFold(dc.Code, code) {
			return copyCode(dc), nil
		}
	}
	return nil, nil
}

func (r discountRepo) Get(ctx context.Context, id int64) (*entity.DiscountCode, error) {
	defer r.enter()()
	dc, ok := r.s.st.codes[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return copyCode(dc), nil
}

func (r discountRepo) IncrementUsage(ctx context.Context, codeID int64) error {
	defer r.enter()()
	dc, ok := r.s.st.codes[codeID]
	if !ok {
		return ports.ErrNotFound
	}
	dc.TimesUsed++
	return nil
}

func (r discountRepo) RedemptionCount(ctx context.Context, codeID, userID int64) (int64, error) {
	defer r.enter()()
	var n int64
	for key := range r.s.st.redemptions {
		if key.CodeID == codeID && key.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r discountRepo) Redeem(ctx context.Context, codeID, userID, orderID int64) (bool, error) {
	defer r.enter()()
	key := redemptionKey{CodeID: codeID, UserID: userID, OrderID: orderID}
	if r.s.st.redemptions[key] {
		return false, nil
	}
	r.s.st.redemptions[key] = true
	return true, nil
}
