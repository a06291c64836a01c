package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEventStatus is the internal processing status of a gateway event
type WebhookEventStatus string

const (
	WebhookEventStatusReceived    WebhookEventStatus = "received"
	WebhookEventStatusProcessed   WebhookEventStatus = "processed"
	WebhookEventStatusIgnored     WebhookEventStatus = "ignored"
	WebhookEventStatusNeedsReview WebhookEventStatus = "needs_review"
)

// WebhookEvent persists every inbound gateway notification. The unique
// index on EventID doubles as the durable idempotency set: the atomic
// insert-if-absent against this table is what makes duplicate deliveries
// safe, surviving restarts and multiple server instances. The raw payload
// is kept for debugging and replay.
type WebhookEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID        string         `gorm:"type:varchar(100);uniqueIndex" json:"event_id"`
	EventType      string         `gorm:"type:varchar(100)" json:"event_type"`
	PaymentGateway PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	OrderID        string         `gorm:"type:varchar(100);index" json:"order_id"`

	Status         WebhookEventStatus `gorm:"type:varchar(20);default:'received'" json:"status"`
	Error          string             `gorm:"type:text" json:"error,omitempty"`
	RegistrationID *uint              `json:"registration_id"`

	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload"`
}
