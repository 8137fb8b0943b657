// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/crmrec/internal/logging"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// Bus is an in-process publisher and subscriber.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a bus whose Watermill logs go through zerolog.
func NewBus() *Bus {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 16,
		}, logger),
		logger: logger,
	}
}

// PublishRetrain publishes a retraining request. The request ID from ctx,
// if any, becomes the message correlation ID.
func (b *Bus) PublishRetrain(ctx context.Context, source string) (*RetrainRequested, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	event := NewRetrainRequested(source, logging.RequestIDFromContext(ctx))
	data, err := event.Marshal()
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set("source", source)
	if event.RequestID != "" {
		middleware.SetCorrelationID(event.RequestID, msg)
	}

	if err := b.pubsub.Publish(TopicRetrain, msg); err != nil {
		return nil, fmt.Errorf("publish %s: %w", TopicRetrain, err)
	}
	logging.Ctx(ctx).Info().Str("event_id", event.EventID).Str("source", source).Msg("Retrain requested")
	return event, nil
}

// SubscribeRetrain delivers decoded retraining requests until ctx is done
// or the bus closes. Malformed messages are logged and dropped.
func (b *Bus) SubscribeRetrain(ctx context.Context) (<-chan *RetrainRequested, error) {
	msgs, err := b.pubsub.Subscribe(ctx, TopicRetrain)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicRetrain, err)
	}

	out := make(chan *RetrainRequested)
	go func() {
		defer close(out)
		for msg := range msgs {
			event, err := UnmarshalRetrainRequested(msg.Payload)
			if err != nil {
				b.logger.Error("Dropping malformed retrain event", err, watermill.LogFields{"uuid": msg.UUID})
				msg.Ack()
				continue
			}
			select {
			case out <- event:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

// Close shuts down the bus. Subscription channels are closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
