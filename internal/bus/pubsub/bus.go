// Package pubsub implements the pipeline bus on Google Cloud Pub/Sub, one
// topic per message kind.
package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webgraph-io/webgraph/internal/crawl"
)

// Config identifies the Pub/Sub project and naming scheme.
type Config struct {
	ProjectID string
	// TopicPrefix is prepended to each pipeline topic name, e.g. a prefix of
	// "webgraph-" yields "webgraph-crawl_links".
	TopicPrefix string
	// SubscriptionSuffix distinguishes this consumer group's subscriptions.
	SubscriptionSuffix string
}

// Bus publishes pipeline messages to Pub/Sub topics and runs the consumer
// loop that feeds a coordinator.
type Bus struct {
	client *pubsub.Client
	cfg    Config
	logger *zap.Logger
	topics map[crawl.Topic]*pubsub.Topic
}

// New verifies every pipeline topic exists and returns a connected Bus.
func New(ctx context.Context, client *pubsub.Client, cfg Config, logger *zap.Logger) (*Bus, error) {
	if cfg.SubscriptionSuffix == "" {
		cfg.SubscriptionSuffix = "-sub"
	}
	topics := make(map[crawl.Topic]*pubsub.Topic, 4)
	for _, t := range crawl.Topics() {
		topic := client.Topic(cfg.TopicPrefix + string(t))
		exists, err := topic.Exists(ctx)
		if err != nil {
			return nil, fmt.Errorf("check topic %s: %w", t, err)
		}
		if !exists {
			return nil, fmt.Errorf("pubsub topic %q does not exist", cfg.TopicPrefix+string(t))
		}
		topics[t] = topic
	}
	return &Bus{client: client, cfg: cfg, logger: logger, topics: topics}, nil
}

// Publish implements crawl.Bus. The publish is fire-and-forget: the client
// batches and retries in the background, and the submission path returns as
// soon as the message is handed off.
func (b *Bus) Publish(ctx context.Context, msg crawl.Message) error {
	data, err := crawl.EncodeMessage(msg)
	if err != nil {
		return err
	}
	topic, ok := b.topics[msg.Topic()]
	if !ok {
		return fmt.Errorf("no topic registered for %s", msg.Topic())
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data})
	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			b.logger.Error("publish failed",
				zap.String("topic", string(msg.Topic())),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Consume receives on every pipeline topic's subscription until the context
// ends. Messages are acked unconditionally: handler errors are logged, not
// redelivered, and malformed payloads are dropped.
func (b *Bus) Consume(ctx context.Context, handle func(context.Context, crawl.Message) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range crawl.Topics() {
		sub := b.client.Subscription(b.cfg.TopicPrefix + string(t) + b.cfg.SubscriptionSuffix)
		g.Go(func() error {
			err := sub.Receive(gctx, func(mctx context.Context, m *pubsub.Message) {
				defer m.Ack()
				msg, err := crawl.DecodeMessage(t, m.Data)
				if err != nil {
					b.logger.Warn("dropping malformed message",
						zap.String("topic", string(t)),
						zap.Error(err),
					)
					return
				}
				if err := handle(mctx, msg); err != nil {
					b.logger.Error("message handling failed",
						zap.String("topic", string(t)),
						zap.Error(err),
					)
				}
			})
			if err != nil {
				return fmt.Errorf("receive on %s: %w", t, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close flushes pending publishes and releases topic resources.
func (b *Bus) Close() {
	for _, topic := range b.topics {
		topic.Stop()
	}
}
