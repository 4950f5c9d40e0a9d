package httppresentation

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	domorder "github.com/somba-market/commerce/internal/domain/order"
)

type deliveryAddressDTO struct {
	Country       string `json:"country,omitempty"`
	Province      string `json:"province,omitempty"`
	City          string `json:"city,omitempty"`
	Commune       string `json:"commune,omitempty"`
	Quarter       string `json:"quarter,omitempty"`
	Avenue        string `json:"avenue,omitempty"`
	Reference     string `json:"reference,omitempty"`
	Phone         string `json:"phone,omitempty"`
	RecipientName string `json:"recipient_name,omitempty"`
}

func (d deliveryAddressDTO) toDomain() domorder.DeliveryAddress {
	return domorder.DeliveryAddress{
		Country:       d.Country,
		Province:      d.Province,
		City:          d.City,
		Commune:       d.Commune,
		Quarter:       d.Quarter,
		Avenue:        d.Avenue,
		Reference:     d.Reference,
		Phone:         d.Phone,
		RecipientName: d.RecipientName,
	}
}

func toAddressDTO(a domorder.DeliveryAddress) deliveryAddressDTO {
	return deliveryAddressDTO{
		Country:       a.Country,
		Province:      a.Province,
		City:          a.City,
		Commune:       a.Commune,
		Quarter:       a.Quarter,
		Avenue:        a.Avenue,
		Reference:     a.Reference,
		Phone:         a.Phone,
		RecipientName: a.RecipientName,
	}
}

type orderItemDTO struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	Currency          string             `json:"currency"`
	DeliveryAddress   deliveryAddressDTO `json:"delivery_address"`
	Notes             string             `json:"notes,omitempty"`
	Items             []orderItemDTO     `json:"items"`
	FulfillmentStatus string             `json:"fulfillment_status"`
	PaymentStatus     string             `json:"payment_status"`
	Total             string             `json:"total"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			ID:        it.ID,
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice.String(),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal.String(),
		})
	}
	return orderResponse{
		ID:                o.ID,
		UserID:            o.UserID,
		Currency:          o.Currency,
		DeliveryAddress:   toAddressDTO(o.DeliveryAddress),
		Notes:             o.Notes,
		Items:             items,
		FulfillmentStatus: string(o.FulfillmentStatus),
		PaymentStatus:     string(o.PaymentStatus),
		Total:             o.Total.String(),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toOrderResponses(orders []*domorder.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// handleListOrders lists all orders, optionally filtered by exactly one
// status axis via ?fulfillment= or ?payment=.
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		orders []*domorder.Order
		err    error
	)
	switch {
	case q.Get("fulfillment") != "":
		status := domorder.FulfillmentStatus(q.Get("fulfillment"))
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, kindValidation, domorder.ErrValidation)
			return
		}
		orders, err = h.orders.ListByFulfillment(r.Context(), status)
	case q.Get("payment") != "":
		status := domorder.PaymentStatus(q.Get("payment"))
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, kindValidation, domorder.ErrValidation)
			return
		}
		orders, err = h.orders.ListByPayment(r.Context(), status)
	default:
		orders, err = h.orders.List(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

type updateOrderStatusRequest struct {
	FulfillmentStatus *string `json:"fulfillment_status"`
	PaymentStatus     *string `json:"payment_status"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	var fulfillment *domorder.FulfillmentStatus
	if req.FulfillmentStatus != nil {
		s := domorder.FulfillmentStatus(*req.FulfillmentStatus)
		fulfillment = &s
	}
	var payment *domorder.PaymentStatus
	if req.PaymentStatus != nil {
		s := domorder.PaymentStatus(*req.PaymentStatus)
		payment = &s
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), fulfillment, payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddOrderItem(w http.ResponseWriter, r *http.Request) {
	var req addOrderItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}
	price, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err)
		return
	}

	o, err := h.orders.AddItem(r.Context(), r.PathValue("id"), domorder.Line{
		ProductID: req.ProductID,
		Title:     req.Title,
		UnitPrice: price,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleRemoveOrderItem(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type orderStatsResponse struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	InProgress int    `json:"in_progress"`
	InTransit  int    `json:"in_transit"`
	Delivered  int    `json:"delivered"`
	Cancelled  int    `json:"cancelled"`
	Revenue    string `json:"revenue"`
}

func (h *Handler) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatsResponse{
		Total:      stats.Total,
		Pending:    stats.Pending,
		InProgress: stats.InProgress,
		InTransit:  stats.InTransit,
		Delivered:  stats.Delivered,
		Cancelled:  stats.Cancelled,
		Revenue:    stats.Revenue.String(),
	})
}
