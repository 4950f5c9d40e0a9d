package httppresentation

import (
	"net/http"

	"github.com/shopspring/decimal"
	appinventory "github.com/somba-market/commerce/internal/application/inventory"
	domproduct "github.com/somba-market/commerce/internal/domain/product"
)

type registerProductRequest struct {
	SellerID string `json:"seller_id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Stock    int    `json:"stock"`
}

type productResponse struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Stock    int    `json:"stock"`
	Version  int64  `json:"version"`
}

func toProductResponse(p *domproduct.Product) productResponse {
	return productResponse{
		ID:       p.ID,
		SellerID: p.SellerID,
		Title:    p.Title,
		Price:    p.Price.String(),
		Currency: p.Currency,
		Status:   string(p.Status),
		Stock:    p.Stock,
		Version:  p.Version,
	}
}

func toProductResponses(products []*domproduct.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

func (h *Handler) handleRegisterProduct(w http.ResponseWriter, r *http.Request) {
	var req registerProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	p, err := h.inventory.RegisterProduct(r.Context(), appinventory.RegisterProductInput{
		SellerID: req.SellerID,
		Title:    req.Title,
		Price:    price,
		Currency: req.Currency,
		Stock:    req.Stock,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.inventory.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleListOutOfStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventory.ListOutOfStock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *Handler) handleListSellerProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.inventory.ListBySeller(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type stockLevelResponse struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Version   int64  `json:"version"`
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	level, err := h.inventory.AdjustStock(r.Context(), r.PathValue("id"), req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockLevelResponse{
		ProductID: level.ProductID,
		Stock:     level.Stock,
		Version:   level.Version,
	})
}

func (h *Handler) handleReconcileAvailability(w http.ResponseWriter, r *http.Request) {
	p, err := h.inventory.ReconcileAvailability(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}
