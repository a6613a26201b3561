// Package kafka публикует уведомления о заказах в Kafka через sarama.
package kafka

import (
	"encoding/json"
	"time"
)

const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// EnvelopeVersion меняется при несовместимом изменении формата Envelope.
const EnvelopeVersion = 1

// Заголовки сообщений.
const (
	HeaderEventID       = "x-event-id"
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderSchemaVersion = "x-schema-version"
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)

// Envelope — сообщение в топике событий заказов. Payload вкладывается без
// перекодирования, Deliveries растёт при повторной выдаче из outbox.
type Envelope struct {
	Version       int             `json:"version"`
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Deliveries    int             `json:"deliveries,omitempty"`
	PublishedAt   time.Time       `json:"published_at"`
}
