package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

// CartView is the cart with its items resolved and priced, plus the derived
// totals. The same pricing path runs at checkout, so the two never disagree.
type CartView struct {
	Cart     *entity.Cart
	Items    []CartItemView
	Code     *entity.DiscountCode
	Subtotal int64
	Discount int64
	Total    int64
}

type CartItemView struct {
	CartItem entity.CartItem
	Item     entity.Item
	Price    int64
}

// CartService owns the cart/cart-item lifecycle and discount association.
type CartService struct {
	store ports.Store
	now   func() time.Time
}

func NewCartService(store ports.Store) *CartService {
	return &CartService{store: store, now: time.Now}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *CartService) Get(ctx context.Context, user ports.User) (*CartView, error) {
	cart, err := s.store.Carts().GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return s.buildView(ctx, s.store, cart)
}

func (s *CartService) buildView(ctx context.Context, repos ports.Repos, cart *entity.Cart) (*CartView, error) {
	cartItems, err := repos.Carts().Items(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	view := &CartView{Cart: cart}
	resolved := make([]entity.Item, 0, len(cartItems))
	for _, ci := range cartItems {
		it, err := repos.Catalog().Resolve(ctx, ci.Ref)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ci.Ref, err)
		}
		resolved = append(resolved, *it)
		view.Items = append(view.Items, CartItemView{CartItem: ci, Item: *it, Price: it.Price()})
	}

	if cart.DiscountCodeID != nil {
		code, err := repos.Discounts().Get(ctx, *cart.DiscountCodeID)
		if err != nil {
			return nil, fmt.Errorf("load discount code: %w", err)
		}
		view.Code = code
	}

	view.Subtotal, view.Discount, view.Total = entity.CartTotals(resolved, view.Code, s.now())
	return view, nil
}

// AddItem puts one purchasable item into the cart. Free items never enter
// the cart; they go through direct enrollment. Re-adding an owned item is a
// no-op.
func (s *CartService) AddItem(ctx context.Context, user ports.User, ref entity.ItemRef) (*CartView, error) {
	if !ref.Kind.Valid() {
		return nil, ErrInvalidItemKind
	}

	item, err := s.store.Catalog().Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, ErrItemUnavailable
	}
	if item.Price() == 0 {
		return nil, ErrItemNotFree
	}
	if ref.Kind == entity.KindCompetitionTeam {
		if item.LeaderID != user.ID {
			return nil, ErrNotTeamLeader
		}
	}

	var cart *entity.Cart
	err = s.store.InTx(ctx, func(tx ports.Repos) error {
		cart, err = tx.Carts().GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}

		existing, err := tx.Carts().FindItem(ctx, cart.ID, ref)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Status == entity.CartItemReserved {
				return ErrAlreadyReserved
			}
			return nil // idempotent re-add
		}

		// A pending order elsewhere already claims this item.
		unpaid, err := tx.Orders().HasUnpaidForItem(ctx, user.ID, ref)
		if err != nil {
			return err
		}
		if unpaid {
			return ErrAlreadyReserved
		}

		if ref.Kind == entity.KindCompetitionTeam && item.RequiresApproval &&
			item.TeamStatus != entity.TeamApprovedAwaitingPayment {
			return ErrTeamNotApproved
		}

		ci := &entity.CartItem{
			CartID:  cart.ID,
			Ref:     ref,
			Status:  entity.CartItemOwned,
			AddedAt: s.now(),
		}
		if err := tx.Carts().AddItem(ctx, ci); err != nil {
			return err
		}

		if ref.Kind == entity.KindCompetitionTeam {
			if err := tx.Catalog().SetTeamStatus(ctx, ref.ID, entity.TeamInCart); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "cart item added", "user_id", user.ID, "item", ref.String())
	return s.buildView(ctx, s.store, cart)
}

// RemoveItem takes one item out of the cart. Removing a team never leaves
// it stranded in an in-cart status. A reserved item cannot be removed while
// its order is still pending; cancel the order first.
func (s *CartService) RemoveItem(ctx context.Context, user ports.User, itemID int64) (*CartView, error) {
	var cart *entity.Cart
	err := s.store.InTx(ctx, func(tx ports.Repos) error {
		var err error
		cart, err = tx.Carts().GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}

		ci, err := tx.Carts().GetItem(ctx, cart.ID, itemID)
		if err != nil {
			return err
		}
		if ci.Status == entity.CartItemReserved {
			return ErrAlreadyReserved
		}

		if err := tx.Carts().DeleteItem(ctx, ci.ID); err != nil {
			return err
		}

		if ci.Ref.Kind == entity.KindCompetitionTeam {
			item, err := tx.Catalog().Resolve(ctx, ci.Ref)
			if err != nil {
				return err
			}
			if item.TeamStatus == entity.TeamInCart {
				next := entity.ReleasedTeamStatus(item.RequiresApproval)
				if err := tx.Catalog().SetTeamStatus(ctx, ci.Ref.ID, next); err != nil {
					return err
				}
			}
		}

		// Drop the applied code when it no longer matches anything left.
		return s.dropStaleDiscount(ctx, tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, s.store, cart)
}

func (s *CartService) dropStaleDiscount(ctx context.Context, tx ports.Repos, cart *entity.Cart) error {
	if cart.DiscountCodeID == nil {
		return nil
	}
	code, err := tx.Discounts().Get(ctx, *cart.DiscountCodeID)
	if err != nil {
		return err
	}
	if code.Target == nil {
		return nil
	}
	items, err := tx.Carts().Items(ctx, cart.ID)
	if err != nil {
		return err
	}
	for _, ci := range items {
		if ci.Ref == *code.Target {
			return nil
		}
	}
	cart.DiscountCodeID = nil
	return tx.Carts().SetDiscount(ctx, cart.ID, nil)
}

// ApplyDiscount validates the code against the current subtotal and the
// caller's per-user quota, then attaches it to the cart.
func (s *CartService) ApplyDiscount(ctx context.Context, user ports.User, code string) (*CartView, error) {
	dc, err := s.store.Discounts().FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find discount code: %w", err)
	}
	if dc == nil {
		return nil, ErrInvalidDiscount
	}

	var cart *entity.Cart
	err = s.store.InTx(ctx, func(tx ports.Repos) error {
		cart, err = tx.Carts().GetOrCreate(ctx, user.ID)
		if err != nil {
			return err
		}

		view, err := s.buildView(ctx, tx, cart)
		if err != nil {
			return err
		}

		items := make([]entity.Item, 0, len(view.Items))
		for _, iv := range view.Items {
			items = append(items, iv.Item)
		}
		if len(dc.EligibleItems(items)) == 0 {
			return ErrInvalidDiscount
		}
		if dc.MaxUsesPerUser > 0 {
			used, err := tx.Discounts().RedemptionCount(ctx, dc.ID, user.ID)
			if err != nil {
				return err
			}
			if used >= dc.MaxUsesPerUser {
				return ErrInvalidDiscount
			}
		}
		if !dc.Valid(s.now(), view.Subtotal) {
			return ErrInvalidDiscount
		}

		cart.DiscountCodeID = &dc.ID
		return tx.Carts().SetDiscount(ctx, cart.ID, &dc.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, s.store, cart)
}

// RemoveDiscount detaches any applied code. Idempotent.
func (s *CartService) RemoveDiscount(ctx context.Context, user ports.User) (*CartView, error) {
	cart, err := s.store.Carts().GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if cart.DiscountCodeID != nil {
		cart.DiscountCodeID = nil
		if err := s.store.Carts().SetDiscount(ctx, cart.ID, nil); err != nil {
			return nil, err
		}
	}
	return s.buildView(ctx, s.store, cart)
}
