package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var errPublisherNotReady = errors.New("kafka outbox publisher has no producer")

// OutboxTopicPublisher публикует сообщения outbox в один топик.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	// sourceTopic непуст у DLQ-паблишера: в заголовки попадает исходный топик.
	sourceTopic string
	now         func() time.Time
}

// NewOutboxPublisher публикует в topic (по умолчанию TopicOrderEvents).
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

// NewDeadLetterPublisher публикует в DLQ-топик сообщения, не доставленные в sourceTopic.
func NewDeadLetterPublisher(producer *Producer, topic, sourceTopic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	if sourceTopic == "" {
		sourceTopic = TopicOrderEvents
	}
	p := NewOutboxPublisher(producer, topic)
	p.sourceTopic = sourceTopic
	return p
}

// Topic возвращает топик назначения.
func (p *OutboxTopicPublisher) Topic() string { return p.topic }

// Publish отправляет Envelope с ключом заказа, чтобы его события попадали
// в одну партицию и читались по порядку.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotReady
	}

	publishedAt := p.now().UTC()
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	envelope := Envelope{
		Version:       EnvelopeVersion,
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		Deliveries:    msg.Attempts,
		PublishedAt:   publishedAt,
	}

	headers := map[string]string{
		HeaderEventID:       msg.ID,
		HeaderEventType:     msg.EventType,
		HeaderAggregateType: msg.AggregateType,
		HeaderSchemaVersion: strconv.Itoa(EnvelopeVersion),
	}
	if p.sourceTopic != "" {
		headers[HeaderOriginalTopic] = p.sourceTopic
		headers[HeaderFailedAt] = publishedAt.Format(time.RFC3339Nano)
	}

	return p.producer.PublishJSON(ctx, p.topic, msg.PartitionKey(), envelope, headers)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
