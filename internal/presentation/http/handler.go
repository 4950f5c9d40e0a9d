package httppresentation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	appcart "github.com/somba-market/commerce/internal/application/cart"
	appcheckout "github.com/somba-market/commerce/internal/application/checkout"
	appinventory "github.com/somba-market/commerce/internal/application/inventory"
	apporder "github.com/somba-market/commerce/internal/application/order"
	apppayment "github.com/somba-market/commerce/internal/application/payment"
	"github.com/somba-market/commerce/internal/observability"
	"github.com/somba-market/commerce/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

type Handler struct {
	inventory   *appinventory.Service
	carts       *appcart.Service
	orders      *apporder.Service
	payments    *apppayment.Service
	coordinator *appcheckout.Coordinator

	log observability.Logger
	tel observability.Observability
}

func NewHandler(
	inventory *appinventory.Service,
	carts *appcart.Service,
	orders *apporder.Service,
	payments *apppayment.Service,
	coordinator *appcheckout.Coordinator,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		inventory:   inventory,
		carts:       carts,
		orders:      orders,
		payments:    payments,
		coordinator: coordinator,
		log:         tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:         tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → Access log → Handler
	h.muxHandle(mux, "POST /products", h.handleRegisterProduct)
	h.muxHandle(mux, "GET /products/{id}", h.handleGetProduct)
	h.muxHandle(mux, "GET /products/out-of-stock", h.handleListOutOfStock)
	h.muxHandle(mux, "POST /products/{id}/stock", h.handleAdjustStock)
	h.muxHandle(mux, "POST /products/{id}/reconcile", h.handleReconcileAvailability)
	h.muxHandle(mux, "GET /sellers/{id}/products", h.handleListSellerProducts)

	h.muxHandle(mux, "GET /carts/{userID}", h.handleGetCart)
	h.muxHandle(mux, "POST /carts/{userID}/items", h.handleAddCartItem)
	h.muxHandle(mux, "PUT /carts/{userID}/items/{productID}", h.handleSetCartQuantity)
	h.muxHandle(mux, "DELETE /carts/{userID}/items/{productID}", h.handleRemoveCartItem)
	h.muxHandle(mux, "DELETE /carts/{userID}", h.handleClearCart)

	h.muxHandle(mux, "POST /checkout", h.handlePlaceOrder)

	h.muxHandle(mux, "GET /orders", h.handleListOrders)
	h.muxHandle(mux, "GET /orders/stats", h.handleOrderStats)
	h.muxHandle(mux, "GET /orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, "PATCH /orders/{id}/status", h.handleUpdateOrderStatus)
	h.muxHandle(mux, "POST /orders/{id}/cancel", h.handleCancelOrder)
	h.muxHandle(mux, "DELETE /orders/{id}", h.handleDeleteOrder)
	h.muxHandle(mux, "POST /orders/{id}/items", h.handleAddOrderItem)
	h.muxHandle(mux, "DELETE /orders/{id}/items/{itemID}", h.handleRemoveOrderItem)
	h.muxHandle(mux, "GET /orders/{id}/payments", h.handleListOrderPayments)
	h.muxHandle(mux, "POST /orders/{id}/payments", h.handleRetryPayment)
	h.muxHandle(mux, "GET /users/{id}/orders", h.handleListUserOrders)

	h.muxHandle(mux, "GET /payments", h.handleListPayments)
	h.muxHandle(mux, "GET /payments/stats", h.handlePaymentStats)
	h.muxHandle(mux, "GET /payments/{id}", h.handleGetPayment)
	h.muxHandle(mux, "POST /payments/{id}/confirm", h.handleConfirmPayment)
	h.muxHandle(mux, "POST /payments/{id}/fail", h.handleFailPayment)
	h.muxHandle(mux, "GET /users/{id}/payments", h.handleListUserPayments)

	h.muxHandle(mux, "GET /health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), pattern)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("commerce.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
