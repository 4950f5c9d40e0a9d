package httppresentation

import (
	"net/http"

	appcheckout "github.com/somba-market/commerce/internal/application/checkout"
	dompayment "github.com/somba-market/commerce/internal/domain/payment"
)

type placeOrderLineDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	UserID          string              `json:"user_id"`
	Currency        string              `json:"currency"`
	DeliveryAddress deliveryAddressDTO  `json:"delivery_address"`
	Notes           string              `json:"notes"`
	Lines           []placeOrderLineDTO `json:"lines"`
	Method          string              `json:"method"`
	ClearCart       bool                `json:"clear_cart"`
}

type placeOrderResponse struct {
	Order   orderResponse   `json:"order"`
	Payment paymentResponse `json:"payment"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	lines := make([]appcheckout.PlaceOrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, appcheckout.PlaceOrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	result, err := h.coordinator.PlaceOrder(r.Context(), appcheckout.PlaceOrderInput{
		UserID:          req.UserID,
		Currency:        req.Currency,
		DeliveryAddress: req.DeliveryAddress.toDomain(),
		Notes:           req.Notes,
		Lines:           lines,
		Method:          dompayment.Method(req.Method),
		ClearCart:       req.ClearCart,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		Order:   toOrderResponse(result.Order),
		Payment: toPaymentResponse(result.Payment),
	})
}

type retryPaymentRequest struct {
	Method string `json:"method"`
}

func (h *Handler) handleRetryPayment(w http.ResponseWriter, r *http.Request) {
	var req retryPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	p, err := h.coordinator.RetryPayment(r.Context(), r.PathValue("id"), dompayment.Method(req.Method))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(p))
}
