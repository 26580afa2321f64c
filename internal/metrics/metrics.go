// Package metrics exposes the storefront's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Shop records checkout and HTTP metrics. A nil *Shop is a valid no-op.
type Shop struct {
	ordersCreated     prometheus.Counter
	orderRevenue      prometheus.Counter
	orderFailures     *prometheus.CounterVec
	couponRedemptions *prometheus.CounterVec
	cartRejections    prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the storefront metrics on reg. A nil reg yields a no-op recorder.
func New(reg prometheus.Registerer) *Shop {
	if reg == nil {
		return &Shop{}
	}
	m := &Shop{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Orders successfully created.",
		}),
		orderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_order_final_amount_total",
			Help: "Sum of final amounts of created orders.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_order_failures_total",
			Help: "Order creations rejected, by reason.",
		}, []string{"reason"}),
		couponRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_coupon_redemptions_total",
			Help: "Coupons consumed by orders, by coupon type.",
		}, []string{"type"}),
		cartRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_cart_stock_rejections_total",
			Help: "Cart additions rejected for exceeding stock.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.orderRevenue,
		m.orderFailures,
		m.couponRedemptions,
		m.cartRejections,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// OrderCreated counts a committed order and its final amount
func (m *Shop) OrderCreated(finalAmount decimal.Decimal) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderRevenue.Add(finalAmount.InexactFloat64())
}

// OrderFailed counts a rejected order under reason
func (m *Shop) OrderFailed(reason string) {
	if m == nil || m.orderFailures == nil {
		return
	}
	m.orderFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// CouponRedeemed counts a consumed coupon of the given type
func (m *Shop) CouponRedeemed(couponType string) {
	if m == nil || m.couponRedemptions == nil {
		return
	}
	m.couponRedemptions.WithLabelValues(normalizeLabel(couponType)).Inc()
}

// CartStockRejected counts a cart addition refused for exceeding stock
func (m *Shop) CartStockRejected() {
	if m == nil || m.cartRejections == nil {
		return
	}
	m.cartRejections.Inc()
}

// Middleware records request counts and latency keyed by chi route pattern
func (m *Shop) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.httpRequests == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
