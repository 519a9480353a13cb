package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
	"github.com/sharifevents/shop-service/internal/core/services"
	"github.com/sharifevents/shop-service/internal/infra/httpx/middlewares"
	"github.com/sharifevents/shop-service/internal/pkg/metrics"
)

// Handler exposes the checkout engine over HTTP. Authentication happens
// upstream; the identity middleware turns the forwarded headers into a
// ports.User.
type Handler struct {
	cart      *services.CartService
	checkout  *services.CheckoutService
	batch     *services.BatchService
	reconcile *services.ReconcileService
	metrics   *metrics.Metrics // nil-safe
}

func NewHandler(
	cart *services.CartService,
	checkout *services.CheckoutService,
	batch *services.BatchService,
	reconcile *services.ReconcileService,
	m *metrics.Metrics,
) *Handler {
	return &Handler{cart: cart, checkout: checkout, batch: batch, reconcile: reconcile, metrics: m}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Get(r.Context(), middlewares.UserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCartToResponse(view))
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	ref := entity.ItemRef{Kind: entity.ItemKind(req.Kind), ID: req.ItemID}
	view, err := h.cart.AddItem(r.Context(), middlewares.UserFromContext(r.Context()), ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapCartToResponse(view))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := parseID(w, chi.URLParam(r, "itemID"))
	if !ok {
		return
	}
	view, err := h.cart.RemoveItem(r.Context(), middlewares.UserFromContext(r.Context()), itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCartToResponse(view))
}

func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req ApplyDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code_required", "")
		return
	}
	view, err := h.cart.ApplyDiscount(r.Context(), middlewares.UserFromContext(r.Context()), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCartToResponse(view))
}

func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.RemoveDiscount(r.Context(), middlewares.UserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCartToResponse(view))
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Checkout(r.Context(), middlewares.UserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order, nil))
}

func (h *Handler) PartialCheckout(w http.ResponseWriter, r *http.Request) {
	var req PartialCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	orders, err := h.checkout.PartialCheckout(r.Context(), middlewares.UserFromContext(r.Context()), req.CartItemIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, mapOrderToResponse(o, nil))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.Orders(r.Context(), middlewares.UserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, mapOrderToResponse(&orders[i], nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}
	order, items, err := h.checkout.Order(r.Context(), middlewares.UserFromContext(r.Context()), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order, items))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}
	order, err := h.checkout.Cancel(r.Context(), middlewares.UserFromContext(r.Context()), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order, nil))
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, chi.URLParam(r, "orderID"))
	if !ok {
		return
	}
	session, err := h.checkout.InitiatePayment(r.Context(), middlewares.UserFromContext(r.Context()), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.countPaymentStarted("order")
	writeJSON(w, http.StatusOK, PaymentSessionResponse{
		Authority:  session.Authority,
		PaymentURL: session.RedirectURL,
	})
}

func (h *Handler) InitiateBatchPayment(w http.ResponseWriter, r *http.Request) {
	var req BatchPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	orderIDs := make([]uuid.UUID, 0, len(req.OrderIDs))
	for _, raw := range req.OrderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", raw)
			return
		}
		orderIDs = append(orderIDs, id)
	}

	batch, session, err := h.batch.Initiate(r.Context(), middlewares.UserFromContext(r.Context()), orderIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.countPaymentStarted("batch")
	writeJSON(w, http.StatusOK, BatchPaymentResponse{
		BatchID:    batch.BatchID.String(),
		Status:     string(batch.Status),
		Total:      batch.Total,
		Authority:  session.Authority,
		PaymentURL: session.RedirectURL,
	})
}

// PaymentCallback is where the gateway sends the user's browser back. The
// outcome is always a 302 to the storefront.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	authority := r.URL.Query().Get("Authority")
	ok := r.URL.Query().Get("Status") == "OK"

	redirect := h.reconcile.HandleCallback(r.Context(), authority, ok)
	h.countSettlement(redirect)
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (h *Handler) countPaymentStarted(kind string) {
	if h.metrics != nil {
		h.metrics.PaymentsStarted.WithLabelValues(kind).Inc()
	}
}

func (h *Handler) countSettlement(redirect string) {
	if h.metrics == nil {
		return
	}
	result := "success"
	if u, err := url.Parse(redirect); err == nil {
		if reason := u.Query().Get("reason"); reason != "" {
			result = reason
		}
	}
	h.metrics.PaymentsSettled.WithLabelValues(result).Inc()
}

func parseOrderID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", raw)
		return uuid.UUID{}, false
	}
	return id, true
}

func parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", raw)
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidItemKind),
		errors.Is(err, services.ErrItemNotFree),
		errors.Is(err, services.ErrCartEmpty),
		errors.Is(err, services.ErrInvalidDiscount),
		errors.Is(err, services.ErrNoPayableItems):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, services.ErrNotTeamLeader):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrAlreadyReserved),
		errors.Is(err, services.ErrItemUnavailable),
		errors.Is(err, services.ErrTeamNotApproved),
		errors.Is(err, services.ErrNotCancellable),
		errors.Is(err, services.ErrNotPayable),
		errors.Is(err, services.ErrNotEligible),
		errors.Is(err, services.ErrOrderInBatch),
		errors.Is(err, services.ErrAlreadyOwned):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		var gwErr *ports.GatewayError
		var unreachable *ports.GatewayUnreachableError
		if errors.As(err, &gwErr) || errors.As(err, &unreachable) {
			writeError(w, http.StatusBadGateway, "gateway_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
