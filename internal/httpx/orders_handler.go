package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/chen220-Yee/social-shop/internal/checkout"
	"github.com/chen220-Yee/social-shop/internal/events"
	kafkax "github.com/chen220-Yee/social-shop/internal/kafka"
	"github.com/chen220-Yee/social-shop/internal/orders"
)

type CreateOrderReq struct {
	Lines       []checkout.LineInput `json:"lines"`
	PayPassword string               `json:"pay_password"`
}

type ListOrdersResp struct {
	Orders []orders.Order `json:"orders"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

func (h *ShopHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.Checkout.Execute(ctx, checkout.Request{
		UserID:      id.UserID,
		Lines:       req.Lines,
		PayPassword: req.PayPassword,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.cacheOrderStatus(ctx, order.ID, "paid")
	h.publishOrderPaid(order, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, order)
}

func (h *ShopHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	page := atoiDefault(r.URL.Query().Get("page"), 1)
	limit := atoiDefault(r.URL.Query().Get("limit"), 10)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, total, err := h.Orders.ListPaid(ctx, id.UserID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, ListOrdersResp{Orders: list, Total: total, Page: page, Limit: limit})
}

func (h *ShopHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Orders.Cancel(ctx, id.UserID, orderID); err != nil {
		h.writeError(w, err)
		return
	}

	h.cacheOrderStatus(ctx, orderID, "cancelled")

	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(events.OrderCancelledPayload{OrderID: orderID, UserID: id.UserID}),
	}
	h.CancelEvents.Publish(events.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": "cancelled"})
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ShopHandler) publishOrderPaid(order orders.Order, trace string) {
	lines := make([]events.OrderLine, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, events.OrderLine{
			ProductID: l.ProductID, Qty: l.Quantity, PriceCents: int64(l.PriceCents),
		})
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: order.ID,
		Payload: kafkax.MustMarshal(events.OrderPaidPayload{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Lines:      lines,
			TotalCents: int64(order.TotalCents),
		}),
	}
	h.OrderEvents.Publish(events.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
