package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

// Sink receives searchable projections whenever an item changes.
type Sink interface {
	Sync(ctx context.Context, doc Document) error
}

// NoopSink drops every document. Used when no search topic is configured.
type NoopSink struct{}

func (NoopSink) Sync(context.Context, Document) error { return nil }

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubSink forwards index instructions to a Pub/Sub topic consumed by the indexer.
type PubSubSink struct {
	pub     publisher
	timeout time.Duration
	logg    *logger.Logger
}

// NewPubSubSink wraps the search topic publisher.
func NewPubSubSink(p *gcppubsub.Publisher, logg *logger.Logger) (*PubSubSink, error) {
	if p == nil {
		return nil, fmt.Errorf("search publisher required")
	}
	return &PubSubSink{pub: &gcpPublisher{Publisher: p}, timeout: defaultPublishTimeout, logg: logg}, nil
}

// Sync publishes an upsert for available items and a delete otherwise.
func (s *PubSubSink) Sync(ctx context.Context, doc Document) error {
	msg := MessageFor(doc)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal search message: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result := s.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"op":        string(msg.Op),
			"index":     msg.Index,
			"tenant_id": doc.TenantID.String(),
			"item_id":   doc.ID.String(),
		},
	})
	if result == nil {
		return errors.New("publish result is nil")
	}
	id, err := result.Get(publishCtx)
	if err != nil {
		return fmt.Errorf("publish search message: %w", err)
	}

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"message_id": id,
		"item_id":    doc.ID.String(),
		"op":         string(msg.Op),
	}), "search document published")
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
