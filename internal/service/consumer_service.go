package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"literature-agent-be/internal/dto"
	"literature-agent-be/internal/pkg/logger"
	"literature-agent-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill/message"
)

const consumerModule = "Consumer"

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// ControllerLookup finds a live session controller
type ControllerLookup interface {
	Lookup(id string) (*session.Controller, bool)
}

// consumerService segments figures in the background after a load
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	sessions   ControllerLookup
	logger     logger.ILogger
	retryDelay time.Duration
}

func NewConsumerService(subscriber message.Subscriber, topicName string, sessions ControllerLookup, log logger.ILogger) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		sessions:   sessions,
		logger:     log,
		retryDelay: 2 * time.Second,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PrewarmFiguresMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(consumerModule, "Failed to unmarshal prewarm message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid messages are never retried
		return
	}

	ctrl, ok := cs.sessions.Lookup(payload.SessionId)
	if !ok {
		cs.logger.Info(consumerModule, "Session gone, prewarm skipped", map[string]interface{}{
			"session_id": payload.SessionId,
		})
		msg.Ack()
		return
	}

	started := time.Now()
	n, err := ctrl.Prewarm(ctx, payload.DocumentId, payload.Figures)
	switch {
	case err == nil:
		cs.logger.Info(consumerModule, "Figures prewarmed", map[string]interface{}{
			"session_id": payload.SessionId,
			"segmented":  n,
			"duration":   time.Since(started).String(),
		})
		msg.Ack()
	case errors.Is(err, session.ErrNoDocument):
		msg.Ack()
	case ctx.Err() != nil:
		msg.Nack()
	default:
		cs.logger.Warn(consumerModule, "Prewarm failed, retrying", map[string]interface{}{
			"session_id": payload.SessionId,
			"error":      err.Error(),
		})
		select {
		case <-time.After(cs.retryDelay):
		case <-ctx.Done():
		}
		msg.Nack()
	}
}
