package transport

import (
	"net/http"

	"xingqu-shop/internal/apperror"
	"xingqu-shop/internal/domain"
	"xingqu-shop/internal/middleware"
	"xingqu-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CouponRequest represents the coupon template payload
type CouponRequest struct {
	Name          string              `json:"name" validate:"required,max=100"`
	Type          domain.CouponType   `json:"type" validate:"required,oneof=FIXED PERCENT"`
	DiscountValue decimal.Decimal     `json:"discount_value" validate:"gt=0"`
	MinAmount     decimal.Decimal     `json:"min_amount" validate:"gte=0"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount" validate:"omitempty,gt=0"`
}

// IssueCouponRequest grants a coupon to one user
type IssueCouponRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// CouponHandler handles HTTP requests for coupons
type CouponHandler struct {
	couponService service.CouponService
	logger        *zap.Logger
}

// NewCouponHandler creates a new CouponHandler
func NewCouponHandler(couponService service.CouponService, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{couponService: couponService, logger: logger}
}

// RegisterRoutes registers all coupon routes
func (h *CouponHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/coupons", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListMine)
		r.Get("/{id}/preview", h.Preview)
	})

	r.Route("/api/admin/coupons", func(r chi.Router) {
		r.Use(adminOnly(authMiddleware, h.logger)...)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/{id}/issue", h.Issue)
	})
}

func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CouponRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	coupon, err := h.couponService.Create(r.Context(), service.CouponInput{
		Name:          req.Name,
		Type:          req.Type,
		DiscountValue: req.DiscountValue,
		MinAmount:     req.MinAmount,
		MaxDiscount:   req.MaxDiscount,
	})
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}

	h.logger.Info("Coupon created", zap.String("coupon_id", coupon.ID.String()), zap.String("type", string(coupon.Type)))
	middleware.RespondWithJSON(w, http.StatusCreated, coupon)
}

func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.couponService.List(r.Context())
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, coupons)
}

// Issue grants the coupon to the user named in the body
func (h *CouponHandler) Issue(w http.ResponseWriter, r *http.Request) {
	couponID, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	var req IssueCouponRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	uc, err := h.couponService.Issue(r.Context(), couponID, req.UserID)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, uc)
}

// ListMine returns the caller's coupons, optionally filtered by status
func (h *CouponHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}

	var status *domain.UserCouponStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.UserCouponStatus(raw)
		status = &s
	}

	coupons, err := h.couponService.ListForUser(r.Context(), userID, status)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, coupons)
}

// Preview reports the discount a user coupon would grant on ?subtotal=
func (h *CouponHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id", h.logger)
	if !ok {
		return
	}
	subtotal, err := decimal.NewFromString(r.URL.Query().Get("subtotal"))
	if err != nil || subtotal.IsNegative() {
		middleware.RespondWithAppError(w, apperror.New(apperror.CodeValidation, "subtotal must be a non-negative amount"), h.logger)
		return
	}

	preview, err := h.couponService.Preview(r.Context(), userID, id, subtotal)
	if err != nil {
		middleware.RespondWithError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, preview)
}
