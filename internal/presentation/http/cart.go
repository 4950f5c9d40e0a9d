package httppresentation

import (
	"net/http"

	domcart "github.com/somba-market/commerce/internal/domain/cart"
)

type cartResponse struct {
	UserID     string         `json:"user_id"`
	Lines      []domcart.Line `json:"lines"`
	TotalItems int            `json:"total_items"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	lines := c.Lines
	if lines == nil {
		lines = []domcart.Line{}
	}
	return cartResponse{
		UserID:     c.UserID,
		Lines:      lines,
		TotalItems: c.TotalItems(),
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("userID"), req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleSetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req cartQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	c, err := h.carts.SetQuantity(r.Context(), r.PathValue("userID"), r.PathValue("productID"), req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("userID"), r.PathValue("productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), r.PathValue("userID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
