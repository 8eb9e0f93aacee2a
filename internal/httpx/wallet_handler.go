package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/chen220-Yee/social-shop/internal/events"
	kafkax "github.com/chen220-Yee/social-shop/internal/kafka"
	"github.com/chen220-Yee/social-shop/internal/money"
	"github.com/chen220-Yee/social-shop/internal/wallet"
)

type RechargeReq struct {
	Amount float64 `json:"amount"`
}

type ResolveRechargeReq struct {
	Decision string `json:"decision"` // approved | rejected
}

func (h *ShopHandler) walletInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	info, err := h.Wallet.Info(ctx, id.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if info.RechargeRequests == nil {
		info.RechargeRequests = []wallet.RechargeRequest{}
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *ShopHandler) submitRecharge(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req RechargeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	requestID, err := h.Wallet.SubmitRecharge(ctx, id.UserID, money.FromAmount(req.Amount))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"request_id": requestID, "status": "pending"})
}

func (h *ShopHandler) listPendingRecharges(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	reqs, err := h.Wallet.ListPending(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if reqs == nil {
		reqs = []wallet.RechargeRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *ShopHandler) resolveRecharge(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	userID := chi.URLParam(r, "userID")
	requestID := chi.URLParam(r, "requestID")

	var req ResolveRechargeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	decision := wallet.Decision(req.Decision)
	if !decision.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decision must be approved or rejected"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	amount, err := h.Wallet.Resolve(ctx, userID, requestID, decision)
	if h.RechargeMetrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		h.RechargeMetrics.Resolutions.WithLabelValues(string(decision), outcome).Inc()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventRechargeResolved,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: requestID,
		Payload: kafkax.MustMarshal(events.RechargeResolvedPayload{
			RequestID:   requestID,
			UserID:      userID,
			Decision:    string(decision),
			AmountCents: int64(amount),
		}),
	}
	h.RechargeEvents.Publish(events.PartitionKey(userID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventRechargeResolved)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusOK, map[string]string{"request_id": requestID, "status": req.Decision})
}
