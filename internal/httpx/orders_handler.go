package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scenting/mums/internal/orders"
)

type OrdersHandler struct {
	Manager *orders.Manager
}

type CreateOrderReq struct {
	Products []orders.Line `json:"products"`
}

type OrderResp struct {
	ID       string        `json:"id"`
	Created  time.Time     `json:"created"`
	Complete bool          `json:"complete"`
	Products []orders.Line `json:"products"`
	Price    float64       `json:"price"`
}

type ConfirmOrderReq struct {
	Complete bool `json:"complete"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Patch("/orders/{id}", h.confirmOrder)
	r.Get("/orders/{id}", h.getOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps domain error kinds onto HTTP statuses.
func statusFor(err error) int {
	var (
		notFound     *orders.ProductNotFoundError
		insufficient *orders.InsufficientStockError
		excess       *orders.ExcessReleaseError
		invalid      *orders.InvalidQuantityError
	)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound), errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &insufficient), errors.As(err, &excess):
		return http.StatusConflict
	case errors.Is(err, orders.ErrEmptyOrder), errors.As(err, &invalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, price, err := h.Manager.CreateOrder(ctx, req.Products)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResp(ord, price))
}

func (h *OrdersHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req ConfirmOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ord, err := h.Manager.ConfirmOrder(ctx, orderID, req.Complete)
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := h.Manager.Price(ctx, ord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp(ord, price))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ord, err := h.Manager.Store.Order(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := h.Manager.Price(ctx, ord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp(ord, price))
}

func orderResp(o orders.Order, price float64) OrderResp {
	return OrderResp{
		ID:       o.ID,
		Created:  o.CreatedAt,
		Complete: o.Complete,
		Products: o.Lines,
		Price:    price,
	}
}
