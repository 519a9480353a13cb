package httpx

import (
	"time"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/services"
)

type AddItemRequest struct {
	Kind   string `json:"kind"`
	ItemID int64  `json:"item_id"`
}

type ApplyDiscountRequest struct {
	Code string `json:"code"`
}

type PartialCheckoutRequest struct {
	CartItemIDs []int64 `json:"cart_item_ids"`
}

type BatchPaymentRequest struct {
	OrderIDs []string `json:"order_ids"`
}

type CartResponse struct {
	Items        []CartItemResponse `json:"items"`
	DiscountCode string             `json:"discount_code,omitempty"`
	Subtotal     int64              `json:"subtotal"`
	Discount     int64              `json:"discount"`
	Total        int64              `json:"total"`
}

type CartItemResponse struct {
	ID              int64  `json:"id"`
	Kind            string `json:"kind"`
	ItemID          int64  `json:"item_id"`
	Description     string `json:"description"`
	Price           int64  `json:"price"`
	Status          string `json:"status"`
	ReservedOrderID string `json:"reserved_order_id,omitempty"`
}

type OrderResponse struct {
	OrderID        string              `json:"order_id"`
	Status         string              `json:"status"`
	Subtotal       int64               `json:"subtotal"`
	DiscountAmount int64               `json:"discount_amount"`
	Total          int64               `json:"total"`
	CreatedAt      string              `json:"created_at"`
	PaidAt         string              `json:"paid_at,omitempty"`
	Items          []OrderItemResponse `json:"items,omitempty"`
}

type OrderItemResponse struct {
	Kind        string `json:"kind"`
	ItemID      int64  `json:"item_id"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

type PaymentSessionResponse struct {
	Authority  string `json:"authority"`
	PaymentURL string `json:"payment_url"`
}

type BatchPaymentResponse struct {
	BatchID    string `json:"batch_id"`
	Status     string `json:"status"`
	Total      int64  `json:"total"`
	Authority  string `json:"authority"`
	PaymentURL string `json:"payment_url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapCartToResponse(view *services.CartView) CartResponse {
	resp := CartResponse{
		Items:    make([]CartItemResponse, 0, len(view.Items)),
		Subtotal: view.Subtotal,
		Discount: view.Discount,
		Total:    view.Total,
	}
	if view.Code != nil {
		resp.DiscountCode = view.Code.Code
	}
	for _, iv := range view.Items {
		item := CartItemResponse{
			ID:          iv.CartItem.ID,
			Kind:        string(iv.CartItem.Ref.Kind),
			ItemID:      iv.CartItem.Ref.ID,
			Description: iv.Item.Description,
			Price:       iv.Price,
			Status:      string(iv.CartItem.Status),
		}
		if iv.CartItem.ReservedOrderID != nil {
			item.ReservedOrderID = iv.CartItem.ReservedOrderID.String()
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func mapOrderToResponse(o *entity.Order, items []entity.OrderItem) OrderResponse {
	resp := OrderResponse{
		OrderID:        o.OrderID.String(),
		Status:         string(o.Status),
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		Total:          o.Total,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
	if o.PaidAt != nil {
		resp.PaidAt = o.PaidAt.Format(time.RFC3339)
	}
	for _, oi := range items {
		resp.Items = append(resp.Items, OrderItemResponse{
			Kind:        string(oi.Ref.Kind),
			ItemID:      oi.Ref.ID,
			Description: oi.Description,
			Price:       oi.Price,
		})
	}
	return resp
}
