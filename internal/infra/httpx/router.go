package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sharifevents/shop-service/internal/infra/httpx/middlewares"
	"github.com/sharifevents/shop-service/internal/pkg/metrics"
)

func NewRouter(handler *Handler, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.Instrument(m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// The gateway redirects the browser here; no identity headers arrive.
	r.Get("/payment/callback", handler.PaymentCallback)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Identity)

		r.Get("/cart", handler.GetCart)
		r.Post("/cart/items", handler.AddCartItem)
		r.Delete("/cart/items/{itemID}", handler.RemoveCartItem)
		r.Post("/cart/discount", handler.ApplyDiscount)
		r.Delete("/cart/discount", handler.RemoveDiscount)

		r.Post("/checkout", handler.Checkout)
		r.Post("/checkout/partial", handler.PartialCheckout)

		r.Get("/orders", handler.ListOrders)
		r.Get("/orders/{orderID}", handler.GetOrder)
		r.Post("/orders/{orderID}/cancel", handler.CancelOrder)
		r.Post("/orders/{orderID}/payment", handler.InitiatePayment)

		r.Post("/payments/batch", handler.InitiateBatchPayment)
	})

	return r
}
