package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/promo-engine/internal/money"
	"github.com/xenking/promo-engine/internal/promotion"
)

// RedemptionAPI is the slice of the redemption service the HTTP layer uses.
type RedemptionAPI interface {
	Redeem(ctx context.Context, code string, amount money.Money, now time.Time) (*promotion.Receipt, error)
	Compare(ctx context.Context, codes []string, amount money.Money, now time.Time) (*promotion.Comparison, error)
	Status(ctx context.Context, code string, now time.Time) (*promotion.Record, promotion.State, error)
}

type redeemRequest struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type receiptResponse struct {
	PromotionID    string `json:"promotion_id"`
	Code           string `json:"code"`
	OriginalAmount string `json:"original_amount"`
	DiscountAmount string `json:"discount_amount"`
	FinalAmount    string `json:"final_amount"`
	RemainingUses  *int64 `json:"remaining_uses"`
	RedeemedAt     string `json:"redeemed_at"`
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		badRequest(w, "code is required")
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	receipt, err := h.redemptions.Redeem(r.Context(), req.Code, amount, h.now())
	if err != nil {
		h.writeRedemptionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		PromotionID:    receipt.PromotionID.String(),
		Code:           receipt.Code,
		OriginalAmount: receipt.OriginalAmount.String(),
		DiscountAmount: receipt.DiscountAmount.String(),
		FinalAmount:    receipt.FinalAmount.String(),
		RemainingUses:  receipt.RemainingUses,
		RedeemedAt:     receipt.RedeemedAt.Format(time.RFC3339Nano),
	})
}

type compareRequest struct {
	Codes  []string `json:"codes"`
	Amount string   `json:"amount"`
}

type quoteResponse struct {
	PromotionID    string `json:"promotion_id"`
	Code           string `json:"code"`
	DiscountAmount string `json:"discount_amount"`
	FinalAmount    string `json:"final_amount"`
}

type rejectionResponse struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type compareResponse struct {
	Best       *quoteResponse      `json:"best"`
	Rejections []rejectionResponse `json:"rejections"`
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Codes) == 0 {
		badRequest(w, "codes is required")
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	cmp, err := h.redemptions.Compare(r.Context(), req.Codes, amount, h.now())
	if err != nil {
		h.writeRedemptionError(w, r, err)
		return
	}

	resp := compareResponse{Rejections: make([]rejectionResponse, 0, len(cmp.Rejections))}
	if cmp.Best != nil {
		resp.Best = &quoteResponse{
			PromotionID:    cmp.Best.PromotionID.String(),
			Code:           cmp.Best.Code,
			DiscountAmount: cmp.Best.DiscountAmount.String(),
			FinalAmount:    cmp.Best.FinalAmount.String(),
		}
	}
	for _, rej := range cmp.Rejections {
		resp.Rejections = append(resp.Rejections, rejectionResponse{
			Code:   rej.Code,
			Reason: rejectionReason(rej.Reason),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	PromotionID     string  `json:"promotion_id"`
	Code            string  `json:"code"`
	State           string  `json:"state"`
	DiscountPercent string  `json:"discount_percent"`
	MaxDiscount     *string `json:"max_discount,omitempty"`
	MinPurchase     *string `json:"min_purchase,omitempty"`
	ValidFrom       *string `json:"valid_from,omitempty"`
	ValidUntil      string  `json:"valid_until"`
	UsageLimit      *int64  `json:"usage_limit"`
	UsageCount      int64   `json:"usage_count"`
	Enabled         bool    `json:"enabled"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	rec, state, err := h.redemptions.Status(r.Context(), code, h.now())
	if err != nil {
		h.writeRedemptionError(w, r, err)
		return
	}

	resp := statusResponse{
		PromotionID:     rec.ID.String(),
		Code:            rec.Code,
		State:           string(state),
		DiscountPercent: rec.DiscountPercent.String(),
		ValidUntil:      rec.ValidUntil.Format(time.RFC3339),
		UsageLimit:      rec.UsageLimit,
		UsageCount:      rec.UsageCount,
		Enabled:         rec.Enabled,
	}
	if rec.MaxDiscount != nil {
		s := rec.MaxDiscount.String()
		resp.MaxDiscount = &s
	}
	if rec.MinPurchase != nil {
		s := rec.MinPurchase.String()
		resp.MinPurchase = &s
	}
	if rec.ValidFrom != nil {
		s := rec.ValidFrom.Format(time.RFC3339)
		resp.ValidFrom = &s
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeRedemptionError maps engine errors onto HTTP responses. Business
// rejections carry a machine-readable reason; infrastructure faults become
// 503 so clients can tell "your code doesn't work" from "try again".
func (h *Handler) writeRedemptionError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notStarted *promotion.NotStartedError
		expired    *promotion.ExpiredError
		belowMin   *promotion.BelowMinimumError
		storeErr   *promotion.StoreError
	)

	switch {
	case errors.Is(err, promotion.ErrCodeNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code: http.StatusNotFound, Reason: "code_not_found", Message: err.Error(),
		})
	case errors.Is(err, promotion.ErrDisabled):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code: http.StatusUnprocessableEntity, Reason: "promotion_disabled", Message: err.Error(),
		})
	case errors.As(err, &notStarted):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code: http.StatusUnprocessableEntity, Reason: "not_started_yet", Message: err.Error(),
			Details: map[string]any{"available_at": notStarted.AvailableAt.Format(time.RFC3339)},
		})
	case errors.As(err, &expired):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code: http.StatusUnprocessableEntity, Reason: "expired", Message: err.Error(),
			Details: map[string]any{"expired_at": expired.ExpiredAt.Format(time.RFC3339)},
		})
	case errors.Is(err, promotion.ErrLimitReached):
		writeJSON(w, http.StatusConflict, errorResponse{
			Code: http.StatusConflict, Reason: "limit_reached", Message: err.Error(),
		})
	case errors.As(err, &belowMin):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code: http.StatusUnprocessableEntity, Reason: "below_minimum", Message: err.Error(),
			Details: map[string]any{"minimum": belowMin.Minimum.String()},
		})
	case errors.Is(err, promotion.ErrNonPositiveAmount):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code: http.StatusUnprocessableEntity, Reason: "non_positive_amount", Message: err.Error(),
		})
	case errors.Is(err, promotion.ErrContentionExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Code: http.StatusServiceUnavailable, Reason: "contention_exceeded", Message: err.Error(),
		})
	case errors.As(err, &storeErr):
		logHandlerError(r, "promotion store failure", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Code: http.StatusServiceUnavailable, Reason: "store_unavailable", Message: "promotion store unavailable",
		})
	default:
		logHandlerError(r, "unexpected redemption error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code: http.StatusInternalServerError, Reason: "internal", Message: "internal error",
		})
	}
}

// rejectionReason renders a per-candidate comparison rejection as a stable
// machine-readable token.
func rejectionReason(err error) string {
	var (
		notStarted *promotion.NotStartedError
		expired    *promotion.ExpiredError
		belowMin   *promotion.BelowMinimumError
	)
	switch {
	case errors.Is(err, promotion.ErrCodeNotFound):
		return "code_not_found"
	case errors.Is(err, promotion.ErrDisabled):
		return "promotion_disabled"
	case errors.As(err, &notStarted):
		return "not_started_yet"
	case errors.As(err, &expired):
		return "expired"
	case errors.Is(err, promotion.ErrLimitReached):
		return "limit_reached"
	case errors.As(err, &belowMin):
		return "below_minimum"
	case errors.Is(err, promotion.ErrNonPositiveAmount):
		return "non_positive_amount"
	default:
		return "rejected"
	}
}
