package kds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/mesa-qr-orders/utils"
)

const DefaultChannel = "mesa-qr:orders-updated"

// RedisRelay publishes events to redis so every instance's Hub delivers them.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel, hub: hub}
}

// PublishOrdersUpdated falls back to the local hub when redis is unreachable.
func (r *RedisRelay) PublishOrdersUpdated(ctx context.Context, branchID, mesaID string) error {
	payload, err := json.Marshal(OrdersUpdated{BranchID: branchID, MesaID: mesaID})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		if hubErr := r.hub.PublishOrdersUpdated(ctx, branchID, mesaID); hubErr != nil {
			return hubErr
		}
		return fmt.Errorf("redis publish (delivered locally only): %w", err)
	}
	return nil
}

// Run forwards channel messages to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	utils.InfoLogger.Printf("Relaying %s from redis", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var evt OrdersUpdated
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		utils.ErrorLogger.Warnf("bad relay payload %q: %v", payload, err)
		return
	}
	if err := r.hub.PublishOrdersUpdated(context.Background(), evt.BranchID, evt.MesaID); err != nil {
		utils.ErrorLogger.Warnf("relay broadcast failed: %v", err)
	}
}
