package service

import (
	"context"
	"encoding/json"

	"literature-agent-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IPublisherService interface {
	PublishPrewarm(ctx context.Context, msg dto.PrewarmFiguresMessage) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) PublishPrewarm(ctx context.Context, payload dto.PrewarmFiguresMessage) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return ps.publisher.Publish(ps.topicName, msg)
}
