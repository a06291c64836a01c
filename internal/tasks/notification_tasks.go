package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"eventpay/internal/models"
	"eventpay/internal/services"
)

// SendPaymentConfirmationTaskDef retries confirmation emails the notifier
// could not deliver inline. The realtime pub/sub ping is not retried;
// only the email is durable enough to be worth it.
type SendPaymentConfirmationTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendPaymentConfirmationTaskDef) TaskID() string {
	return services.TaskSendPaymentConfirmation
}

// HandleExecution sends the confirmation email for one registration
func (t *SendPaymentConfirmationTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	regID, ok := uintArg(task.Arguments, "registration_id")
	if !ok {
		return nil, fmt.Errorf("registration_id not provided or invalid")
	}
	attempt, _ := uintArg(task.Arguments, "attempt_count")
	if attempt == 0 {
		attempt = 1
	}

	var reg models.Registration
	if err := db.WithContext(ctx).Preload("Event").First(&reg, regID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch registration %d: %w", regID, err)
	}

	email := services.NewEmailService()
	subject := fmt.Sprintf("Payment confirmed - %s", reg.Event.Name)
	body := fmt.Sprintf("Hi %s,\n\nYour payment of %.2f for %s has been received.\n\nRegistration reference: %s\n",
		reg.CustomerName, reg.AmountPaid, reg.Event.Name, reg.UUID)

	if err := email.SendEmail([]string{reg.CustomerEmail}, subject, body); err != nil {
		// Self-rescheduling is the one retry mechanism for this task.
		// Returning an error here as well would make the worker's own
		// attempt loop re-run the handler in the same tick, and every
		// re-run would enqueue another retry task: duplicate emails.
		retry, planErr := confirmationRetryPlan(t.TaskID(), regID, attempt, task.MaxAttempt, time.Now().Add(5*time.Minute))
		if planErr != nil {
			log.Printf("[Notify] failed to build retry task for registration %d: %v", regID, planErr)
			return nil, fmt.Errorf("failed to send confirmation email: %w", err)
		}
		if retry == nil {
			return nil, fmt.Errorf("failed to send confirmation email after %d attempts: %w", attempt, err)
		}
		if createErr := db.WithContext(ctx).Create(retry).Error; createErr != nil {
			log.Printf("[Notify] failed to schedule retry for registration %d: %v", regID, createErr)
			return nil, fmt.Errorf("failed to send confirmation email: %w", err)
		}
		log.Printf("[Notify] confirmation email attempt %d failed for registration %d, rescheduled: %v", attempt, regID, err)
		return map[string]interface{}{
			"status":          "rescheduled",
			"registration_id": regID,
			"attempt":         attempt,
		}, nil
	}

	return map[string]interface{}{
		"status":          "success",
		"registration_id": regID,
		"attempt":         attempt,
	}, nil
}

// confirmationRetryPlan builds the delayed retry task for a failed send,
// or nil when the attempt budget is spent and the failure is final
func confirmationRetryPlan(taskID string, regID uint, attempt uint, maxAttempt int, due time.Time) (*models.ScheduledTask, error) {
	if int(attempt) >= maxAttempt {
		return nil, nil
	}
	return BuildScheduledTask(taskID, map[string]interface{}{
		"registration_id": regID,
		"attempt_count":   attempt + 1,
	}, due, nil, models.ScheduledTaskTypeOneTime, maxAttempt)
}

// SendPaymentConfirmationTask is the singleton instance
var SendPaymentConfirmationTask = &SendPaymentConfirmationTaskDef{}
