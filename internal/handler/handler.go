// Package handler exposes the redemption engine over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/money"
)

// Handler holds the API dependencies.
type Handler struct {
	redemptions RedemptionAPI
	now         func() time.Time
}

// New creates a Handler over the redemption service. The clock is
// injectable for tests and defaults to time.Now.
func New(redemptions RedemptionAPI) *Handler {
	return &Handler{redemptions: redemptions, now: time.Now}
}

// Routes mounts all API endpoints on a fresh chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/redemptions", h.redeem)
	r.Post("/comparisons", h.compare)
	r.Get("/promotions/{code}", h.status)
	return r
}

type errorResponse struct {
	Code    int            `json:"code"`
	Reason  string         `json:"reason"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Reason:  "bad_request",
		Message: message,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// parseAmount converts a decimal major-unit string ("100.00") into Money,
// rejecting sub-cent precision.
func parseAmount(w http.ResponseWriter, raw string) (money.Money, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		badRequest(w, "amount must be a decimal string")
		return 0, false
	}
	m, err := money.FromDecimal(d)
	if err != nil {
		badRequest(w, "amount must have at most two fractional digits")
		return 0, false
	}
	return m, true
}

func logHandlerError(r *http.Request, msg string, err error) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
}
