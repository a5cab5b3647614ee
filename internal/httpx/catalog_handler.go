package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
)

type CatalogHandler struct {
	Ledger *catalog.Ledger
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Post("/products/{id}/returns", h.returnVariant)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Ledger.ListProducts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

type returnReq struct {
	Color     string `json:"color"`
	SizeLabel string `json:"size_label,omitempty"`
	Qty       int    `json:"qty"`
}

// returnVariant restocks a returned item by variant color. An ambiguous color
// is a client error: the caller must narrow the name instead of this endpoint
// guessing which variant to restock.
func (h *CatalogHandler) returnVariant(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	var req returnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Color == "" || req.Qty <= 0 {
		writeError(w, http.StatusBadRequest, "color and positive qty required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Ledger.ReturnVariant(ctx, productID, req.Color, req.SizeLabel, req.Qty)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "returned": req.Qty})
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrVariantNotFound),
		errors.Is(err, catalog.ErrSizeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrVariantAmbiguous):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
