package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scenting/mums/internal/orders"
)

type ProductsHandler struct {
	Store orders.Store
	Holds orders.Reserver
}

// ProductResp exposes the derived counters alongside the catalog row.
type ProductResp struct {
	orders.Product
	Reserved  int `json:"reserved"`
	RealStock int `json:"real_stock"`
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	ps, err := h.Store.Products(ctx, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]ProductResp, 0, len(ps))
	for _, p := range ps {
		v, err := h.view(ctx, p)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Product(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.view(ctx, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ProductsHandler) view(ctx context.Context, p orders.Product) (ProductResp, error) {
	reserved, err := h.Holds.Reserved(ctx, p.ID)
	if err != nil {
		return ProductResp{}, err
	}
	return ProductResp{Product: p, Reserved: reserved, RealStock: p.Stock - reserved}, nil
}
