package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fizennn/serverTest-sub000/internal/voucher"
)

type VouchersHandler struct {
	Repo *voucher.Repo
}

func (h *VouchersHandler) Register(r *chi.Mux) {
	r.Post("/vouchers/check", h.check)
	r.Post("/vouchers/{id}/users", h.grant)
	r.Delete("/vouchers/{id}/users/{userID}", h.revoke)
}

type voucherCheckReq struct {
	VoucherID string `json:"voucher_id"`
	UserID    string `json:"user_id"`
	Subtotal  int64  `json:"subtotal"`
	ShipCost  int64  `json:"ship_cost"`
}

type voucherCheckResp struct {
	Valid        bool   `json:"valid"`
	ItemDiscount int64  `json:"item_discount"`
	ShipDiscount int64  `json:"ship_discount"`
	Message      string `json:"message,omitempty"`
}

// check is the pre-checkout preview: it prices without consuming a redemption.
func (h *VouchersHandler) check(w http.ResponseWriter, r *http.Request) {
	var req voucherCheckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VoucherID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Repo.Check(ctx, req.VoucherID, req.UserID, req.Subtotal, req.ShipCost)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if isVoucherRejection(err) {
			// a rejected voucher is a valid preview answer, not a failure
			writeJSON(w, http.StatusOK, voucherCheckResp{Valid: false, Message: err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, voucherCheckResp{Valid: true, ItemDiscount: d.Item, ShipDiscount: d.Ship})
}

func (h *VouchersHandler) grant(w http.ResponseWriter, r *http.Request) {
	voucherID := chi.URLParam(r, "id")
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Grant(ctx, voucherID, body.UserID); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, voucher.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"voucher_id": voucherID, "user_id": body.UserID})
}

func (h *VouchersHandler) revoke(w http.ResponseWriter, r *http.Request) {
	voucherID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Revoke(ctx, voucherID, userID); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, voucher.ErrNotGranted) {
			code = http.StatusNotFound
		}
		writeError(w, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isVoucherRejection(err error) bool {
	for _, target := range []error{
		voucher.ErrDisabled, voucher.ErrOutsideWindow, voucher.ErrExhausted,
		voucher.ErrConditionUnmet, voucher.ErrNotEligible,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
