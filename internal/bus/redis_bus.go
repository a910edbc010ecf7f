package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ltg-uic/beaconsync/internal/logger"
)

type redisBus struct {
	log *logger.Logger
	rdb *goredis.Client
	cfg *Config
}

// NewRedisBus connects to the broker and verifies it is reachable before
// returning. Subscriptions start when StartForwarder is called.
func NewRedisBus(log *logger.Logger, cfg *Config) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("bus config required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Broker,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("broker ping: %w", err)
	}

	return &redisBus{
		log: log.With("service", "RedisBus"),
		rdb: rdb,
		cfg: cfg,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, topic string, payload any) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("bus not initialized")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.cfg.Topic(topic), raw).Err()
}

// AsyncRequest publishes a request envelope; the responder publishes its
// answer on the topic named by requestName, which this device subscribes to.
func (b *redisBus) AsyncRequest(ctx context.Context, topic string, payload any, requestName string) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("bus not initialized")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	envelope, err := json.Marshal(map[string]any{
		"requestName": requestName,
		"componentId": b.cfg.ComponentID,
		"payload":     json.RawMessage(raw),
	})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.cfg.Topic(topic), envelope).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m Message)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	topics := make([]string, 0, len(b.cfg.Subscribes))
	for _, ch := range b.cfg.Subscribes {
		topics = append(topics, b.cfg.Topic(ch))
	}
	sub := b.rdb.Subscribe(ctx, topics...)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("broker subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				channel, ok := b.cfg.ChannelFromTopic(m.Channel)
				if !ok {
					continue
				}
				if !json.Valid([]byte(m.Payload)) {
					b.log.Warn("bad bus payload", "channel", channel)
					continue
				}
				onMsg(Message{
					Channel: channel,
					Payload: json.RawMessage(m.Payload),
				})
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
