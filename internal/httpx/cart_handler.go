package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chen220-Yee/social-shop/internal/cart"
)

type CartLineReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartQtyReq struct {
	Quantity int `json:"quantity"`
}

func (h *ShopHandler) getCart(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.Cart.Get(ctx, id.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if lines == nil {
		lines = []cart.Line{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (h *ShopHandler) addCartLine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req CartLineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id and positive quantity required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// Adding a phantom product would only surface at checkout; reject early.
	if _, err := h.Catalog.GetProduct(ctx, req.ProductID); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Cart.AddLine(ctx, id.UserID, req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *ShopHandler) setCartLine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")

	var req CartQtyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "positive quantity required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.SetLine(ctx, id.UserID, productID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *ShopHandler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productID")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Cart.RemoveLine(ctx, id.UserID, productID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
