// Package poller consumes checkout events and empties the owner's cart once an
// order has been placed.
package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	consumerGroup = "cart-service-consumer"
	retryDelay    = time.Second
)

// CartClearer empties an owner cart and drops any cached copy.
type CartClearer interface {
	ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type checkoutEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

type Poller struct {
	carts  CartClearer
	reader messageReader
	log    *zap.Logger
}

func NewPoller(carts CartClearer, log *zap.Logger, topic string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, log: log.With(zap.String("topic", topic))}
}

// Run reads messages until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("read message failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}
		if err := p.handleMessage(ctx, m); err != nil {
			p.log.Error("checkout event not applied",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("close reader failed", zap.Error(err))
	}
}

func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	var event checkoutEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return errors.Wrap(err, "parse checkout event")
	}
	if event.UserID == "" {
		return errors.New("checkout event without user_id")
	}

	if _, err := p.carts.ClearCart(ctx, event.UserID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return errors.Wrapf(err, "clear cart %s", event.UserID)
	}
	p.log.Info("cart cleared after checkout",
		zap.String("owner_id", event.UserID),
		zap.String("checkout_id", event.CheckoutID),
	)
	return nil
}
