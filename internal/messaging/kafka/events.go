package kafka

import "time"

// EventType определяет тип аналитического события жизненного цикла.
type EventType string

const (
	// События жизненного цикла shopping-событий
	EventTypeEventCreated   EventType = "lifecycle.event.created"
	EventTypeStateChanged   EventType = "lifecycle.state.changed"
	EventTypeEventClosed    EventType = "lifecycle.event.closed"
	EventTypeEventCancelled EventType = "lifecycle.event.cancelled"
	EventTypeEventChained   EventType = "lifecycle.chained"

	// События смет
	EventTypeEstimateSubmitted EventType = "estimate.submitted"
)

// Topics для Kafka
const (
	TopicLifecycleEvents = "sms.lifecycle.events"
	TopicDeadLetterQueue = "sms.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// LifecycleEvent представляет аналитическое событие жизненного цикла.
type LifecycleEvent struct {
	EventType EventType              `json:"event_type"`
	EventID   string                 `json:"event_id"`
	AssetID   string                 `json:"asset_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewLifecycleEvent создаёт новое аналитическое событие.
func NewLifecycleEvent(eventType EventType, eventID, assetID string, metadata map[string]interface{}) *LifecycleEvent {
	return &LifecycleEvent{
		EventType: eventType,
		EventID:   eventID,
		AssetID:   assetID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
