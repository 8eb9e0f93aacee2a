// Package notifier consumes commerce events downstream of the API: it warms
// the order-status cache and emits notification logs. It never mutates stock,
// balances or orders.
package notifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chen220-Yee/social-shop/internal/events"
	kafkax "github.com/chen220-Yee/social-shop/internal/kafka"
	"github.com/chen220-Yee/social-shop/internal/redisx"
)

type Service struct {
	Redis *redis.Client
	Log   *zap.Logger
}

// HandleOrderEvent consumes shop.order.paid and shop.order.cancelled.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}

	seen, err := s.dedup(ctx, env.EventID)
	if err != nil || seen {
		return err
	}

	switch env.EventType {
	case events.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[events.OrderPaidPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, "paid")
		s.Log.Info("order paid",
			zap.String("order_id", p.OrderID), zap.String("user_id", p.UserID), zap.Int64("total_cents", p.TotalCents))
	case events.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[events.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, "cancelled")
		s.Log.Info("order cancelled",
			zap.String("order_id", p.OrderID), zap.String("user_id", p.UserID))
	}
	return nil
}

// HandleRechargeResolved consumes shop.wallet.recharge.resolved.
func (s *Service) HandleRechargeResolved(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != events.EventRechargeResolved {
		return nil
	}

	seen, err := s.dedup(ctx, env.EventID)
	if err != nil || seen {
		return err
	}

	p, err := kafkax.UnwrapPayload[events.RechargeResolvedPayload](env.Payload)
	if err != nil {
		return err
	}
	// Balance changed (or a pending request closed); drop the stale cache.
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyWalletBalance, p.UserID)).Err()
	s.Log.Info("recharge resolved",
		zap.String("request_id", p.RequestID), zap.String("user_id", p.UserID), zap.String("decision", p.Decision))
	return nil
}

// dedup returns true when the event was already handled. Redelivery after a
// crash between handling and offset commit lands here.
func (s *Service) dedup(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, "notifier", eventID)
	exists, err := redisx.Exists(ctx, s.Redis, key)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	return false, s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
}

func (s *Service) cacheStatus(ctx context.Context, orderID, status string) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	val := fmt.Sprintf(`{"status":%q}`, status)
	if err := s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err(); err != nil {
		s.Log.Warn("status cache write failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
