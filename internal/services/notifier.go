package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"eventpay/internal/models"
)

// TaskSendPaymentConfirmation is the scheduled-task name under which
// failed confirmation emails are retried by the worker.
const TaskSendPaymentConfirmation = "send_payment_confirmation"

// Notifier delivers payment confirmation side effects. Everything here is
// best-effort: the payment is already real by the time the notifier runs,
// so failures are logged or retried, never propagated back to the ledger.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, reg *models.Registration) error
}

// EventNotifier publishes realtime notifications over Redis pub/sub and
// sends confirmation emails, scheduling a worker retry when SMTP fails.
type EventNotifier struct {
	db    *gorm.DB
	cache *RedisCache
	email *EmailService
}

func NewEventNotifier(db *gorm.DB, cache *RedisCache, email *EmailService) *EventNotifier {
	return &EventNotifier{db: db, cache: cache, email: email}
}

func (n *EventNotifier) PaymentConfirmed(ctx context.Context, reg *models.Registration) error {
	var ev models.Event
	if err := n.db.WithContext(ctx).First(&ev, reg.EventID).Error; err != nil {
		return fmt.Errorf("load event %d: %w", reg.EventID, err)
	}

	payload := map[string]interface{}{
		"type":            "payment.confirmed",
		"registration_id": reg.ID,
		"event_id":        reg.EventID,
		"customer_email":  reg.CustomerEmail,
		"amount_paid":     reg.AmountPaid,
		"payment_status":  reg.PaymentStatus,
	}

	// The owner's channel and the event's channel both receive the ping
	if err := n.cache.Publish(ctx, "notify:owner:"+ev.OwnerUID, payload); err != nil {
		log.Printf("[Notify] owner channel publish failed for registration %d: %v", reg.ID, err)
	}
	if err := n.cache.Publish(ctx, fmt.Sprintf("notify:event:%d", reg.EventID), payload); err != nil {
		log.Printf("[Notify] event channel publish failed for registration %d: %v", reg.ID, err)
	}

	if err := n.sendConfirmationEmail(reg, &ev); err != nil {
		log.Printf("[Notify] confirmation email failed for registration %d, scheduling retry: %v", reg.ID, err)
		n.scheduleEmailRetry(ctx, reg)
	}
	return nil
}

func (n *EventNotifier) sendConfirmationEmail(reg *models.Registration, ev *models.Event) error {
	subject := fmt.Sprintf("Payment confirmed - %s", ev.Name)
	body := fmt.Sprintf("Hi %s,\n\nYour payment of %.2f for %s has been received.\n\nRegistration reference: %s\n",
		reg.CustomerName, reg.AmountPaid, ev.Name, reg.UUID)
	return n.email.SendEmail([]string{reg.CustomerEmail}, subject, body)
}

func (n *EventNotifier) scheduleEmailRetry(ctx context.Context, reg *models.Registration) {
	task := models.ScheduledTask{
		TaskName: TaskSendPaymentConfirmation,
		Arguments: map[string]interface{}{
			"registration_id": reg.ID,
			"attempt_count":   1,
		},
		Due:        time.Now().Add(5 * time.Minute),
		Status:     models.ScheduledTaskStatusActive,
		TaskType:   models.ScheduledTaskTypeOneTime,
		MaxAttempt: 3,
	}
	if err := n.db.WithContext(ctx).Create(&task).Error; err != nil {
		log.Printf("[Notify] failed to schedule email retry for registration %d: %v", reg.ID, err)
	}
}
