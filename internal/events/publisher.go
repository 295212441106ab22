// Package events notifies downstream consumers when a batch lands in the
// graph. Delivery is best effort; ingestion never fails because a
// notification could not be sent.
package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

type Publisher interface {
	PublishBatch(ctx context.Context, event model.BatchEvent) error
}

// RedisPublisher emits batch events on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisPublisher(client *redis.Client, channel string, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, log: log.With("component", "events")}
}

func (p *RedisPublisher) PublishBatch(ctx context.Context, event model.BatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "events: marshal batch event")
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return eris.Wrap(err, "events: publish batch event")
	}
	p.log.Debug("batch event published", "channel", p.channel, "document_id", event.DocumentID)
	return nil
}

// NopPublisher drops events; used in tests and when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishBatch(context.Context, model.BatchEvent) error { return nil }
