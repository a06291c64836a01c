package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"eventpay/internal/models"
)

// Gateway event types the engine understands. Anything else is logged and
// acknowledged so new gateway event types never cause retry storms.
const (
	EventCheckoutCompleted = "checkout_completed"
	EventPaymentSucceeded  = "payment_succeeded"
	EventPaymentFailed     = "payment_failed"
)

// WebhookEnvelope is the gateway-defined event wrapper
type WebhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object EventObject `json:"object"`
	} `json:"data"`
}

// EventObject is the payment object inside an envelope. Field shapes
// follow the Midtrans notification format (gross_amount is a string).
type EventObject struct {
	OrderID       string        `json:"order_id"`
	StatusCode    string        `json:"status_code"`
	GrossAmount   string        `json:"gross_amount"`
	SignatureKey  string        `json:"signature_key"`
	PaymentType   string        `json:"payment_type"`
	TransactionID string        `json:"transaction_id"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	Metadata      EventMetadata `json:"metadata"`
}

// EventMetadata is the correlation block the checkout flow embeds when it
// creates a gateway session. The gateway echoes it back verbatim; it can
// be partially or entirely missing, which is what the fallback matching
// chain exists for.
type EventMetadata struct {
	RegistrationID *uint `json:"registration_id"`
	InstallmentID  *uint `json:"installment_id"`
	EventID        uint  `json:"event_id"`
	TicketID       uint  `json:"ticket_id"`
}

// WebhookResult is the acknowledgement body returned to the gateway
type WebhookResult struct {
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
}

// ReconcileEngine consumes at-least-once, possibly duplicated, possibly
// out-of-order gateway events and applies their financial effect exactly
// once. All collaborators are injected; tests substitute fakes.
type ReconcileEngine struct {
	store    Store
	ledger   *LedgerService
	gateway  Gateway
	notifier Notifier

	// dispatch runs side effects without blocking the response path.
	// Overridable so tests run them inline.
	dispatch func(fn func())
}

func NewReconcileEngine(store Store, ledger *LedgerService, gateway Gateway, notifier Notifier) *ReconcileEngine {
	return &ReconcileEngine{
		store:    store,
		ledger:   ledger,
		gateway:  gateway,
		notifier: notifier,
		dispatch: func(fn func()) { go fn() },
	}
}

// HandleEvent runs the per-event state machine: verify, dedupe, classify,
// match, apply, side effects. Errors after the dedupe record are marked
// needs_review on the event log because the gateway's retry will be
// absorbed as a duplicate; those rows are the manual reconciliation queue.
func (e *ReconcileEngine) HandleEvent(ctx context.Context, rawBody []byte) (*WebhookResult, error) {
	var env WebhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload: %v", ErrValidation, err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, fmt.Errorf("%w: event id and type are required", ErrValidation)
	}
	obj := env.Data.Object

	// Verify against the raw body's own signature fields before anything
	// else. A mismatch means the sender is not the gateway.
	if !e.gateway.VerifySignature(obj.OrderID, obj.StatusCode, obj.GrossAmount, obj.SignatureKey) {
		return nil, fmt.Errorf("%w: event %s", ErrSignature, env.ID)
	}

	result := &WebhookResult{Received: true, EventType: env.Type, EventID: env.ID}

	// Durable atomic insert-if-absent is the dedupe step. Webhook senders
	// retry on timeout; duplicates are expected and silently absorbed.
	inserted, err := e.store.InsertWebhookEventIfAbsent(ctx, &models.WebhookEvent{
		EventID:        env.ID,
		EventType:      env.Type,
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        obj.OrderID,
		Status:         models.WebhookEventStatusReceived,
		Payload:        rawBody,
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", env.ID, err)
	}
	if !inserted {
		log.Printf("[Webhook] duplicate delivery of %s absorbed", env.ID)
		return result, nil
	}

	switch env.Type {
	case EventCheckoutCompleted, "checkout.session.completed", EventPaymentSucceeded:
		if err := e.applyPaymentEvent(ctx, &env); err != nil {
			// The dedupe record already exists, so the gateway retry
			// will be absorbed: flag for manual reconciliation.
			log.Printf("[Webhook] NEEDS REVIEW: event %s (%s) failed after dedupe: %v", env.ID, env.Type, err)
			_ = e.store.UpdateWebhookEvent(ctx, env.ID, models.WebhookEventStatusNeedsReview, err.Error(), nil)
			return nil, err
		}
	case EventPaymentFailed:
		log.Printf("[Webhook] payment failed for order %s (event %s)", obj.OrderID, env.ID)
		_ = e.store.UpdateWebhookEvent(ctx, env.ID, models.WebhookEventStatusProcessed, "", nil)
	default:
		log.Printf("[Webhook] unrecognized event type %q (event %s), acknowledged", env.Type, env.ID)
		_ = e.store.UpdateWebhookEvent(ctx, env.ID, models.WebhookEventStatusIgnored, "", nil)
	}

	return result, nil
}

// applyPaymentEvent matches a gateway-confirmed payment to a registration
// and applies it to the ledger
func (e *ReconcileEngine) applyPaymentEvent(ctx context.Context, env *WebhookEnvelope) error {
	obj := env.Data.Object

	amount, err := e.resolveAmount(ctx, &obj)
	if err != nil {
		return err
	}

	reg, matchedBy, err := e.matchRegistration(ctx, &obj)
	if err != nil {
		return err
	}

	if reg != nil && matchedBy == "already-paid" {
		// Duplicate payment id update: attach the gateway reference to
		// the settled registration, no re-confirmation side effects.
		reg.PaymentID = obj.TransactionID
		reg.PaymentGateway = models.PaymentGatewayMidtrans
		if err := e.store.SaveRegistration(ctx, reg); err != nil {
			return err
		}
		log.Printf("[Webhook] event %s: payment id attached to already-paid registration %d", env.ID, reg.ID)
		return e.store.UpdateWebhookEvent(ctx, env.ID, models.WebhookEventStatusProcessed, "", &reg.ID)
	}

	if reg == nil {
		// Last resort: never silently lose a gateway-confirmed payment
		reg, err = e.createRegistrationFromEvent(ctx, &obj, amount)
		if err != nil {
			return err
		}
		log.Printf("[Webhook] UNMATCHED payment: event %s created registration %d for %s (event %d, ticket %d)",
			env.ID, reg.ID, obj.CustomerEmail, obj.Metadata.EventID, obj.Metadata.TicketID)
		e.fireConfirmation(reg.ID)
		return e.store.UpdateWebhookEvent(ctx, env.ID, models.WebhookEventStatusProcessed, "", &reg.ID)
	}

	if err := e.applyToRegistration(ctx, reg, &obj, amount); err != nil {
		return err
	}
	log.Printf("[Webhook] event %s applied to registration %d (matched by %s)", env.ID, reg.ID, matchedBy)

	e.fireConfirmation(reg.ID)
	return e.store.UpdateWebhookEvent(ctx, env.ID, models.WebhookEventStatusProcessed, "", &reg.ID)
}

// resolveAmount takes the amount from the envelope, falling back to the
// gateway's session lookup API when the payload omits it
func (e *ReconcileEngine) resolveAmount(ctx context.Context, obj *EventObject) (float64, error) {
	if obj.GrossAmount != "" {
		amount, err := strconv.ParseFloat(obj.GrossAmount, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad gross_amount %q", ErrValidation, obj.GrossAmount)
		}
		return amount, nil
	}
	if obj.OrderID == "" {
		return 0, fmt.Errorf("%w: event carries neither gross_amount nor order_id", ErrValidation)
	}
	session, err := e.gateway.LookupSession(ctx, obj.OrderID)
	if err != nil {
		return 0, fmt.Errorf("session lookup for order %s: %w", obj.OrderID, err)
	}
	return session.GrossAmount, nil
}

// matchRegistration walks the fallback chain in strict order, stopping at
// the first hit. Returns (nil, "", nil) when nothing matched, which sends
// the caller to the create-new last resort.
func (e *ReconcileEngine) matchRegistration(ctx context.Context, obj *EventObject) (*models.Registration, string, error) {
	meta := obj.Metadata

	// 1. Exact metadata match, accepted only while the registration is
	// not yet settled. Stale metadata must never reopen a paid one.
	if meta.RegistrationID != nil {
		reg, err := e.store.GetRegistration(ctx, *meta.RegistrationID)
		switch {
		case err == nil && reg.PaymentStatus != models.PaymentStatusPaid:
			return reg, "metadata", nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, "", err
		}
	}

	if meta.EventID == 0 || obj.CustomerEmail == "" || meta.TicketID == 0 {
		return nil, "", nil
	}

	// 2. email + ticket among the event's pending registrations
	reg, err := e.store.FindRegistrationByStatus(ctx, meta.EventID, obj.CustomerEmail, meta.TicketID, models.PaymentStatusPending)
	if err == nil {
		return reg, "email+ticket", nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	// 3. same email + ticket already paid: duplicate payment id update
	reg, err = e.store.FindRegistrationByStatus(ctx, meta.EventID, obj.CustomerEmail, meta.TicketID, models.PaymentStatusPaid)
	if err == nil {
		return reg, "already-paid", nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	return nil, "", nil
}

// applyToRegistration records the payment. Registrations with an
// installment schedule go through the ledger; plain registrations are
// confirmed wholesale.
func (e *ReconcileEngine) applyToRegistration(ctx context.Context, reg *models.Registration, obj *EventObject, amount float64) error {
	installments, err := e.store.ListInstallmentsByRegistration(ctx, reg.ID)
	if err != nil {
		return err
	}

	if len(installments) > 0 {
		if err := e.creditInstallments(ctx, reg, installments, obj, amount); err != nil {
			return err
		}
		if err := e.ledger.RecomputeRegistrationStatus(ctx, reg.ID); err != nil {
			return err
		}
		// Re-read the aggregate the ledger just refreshed
		updated, err := e.store.GetRegistration(ctx, reg.ID)
		if err != nil {
			return err
		}
		updated.PaymentID = obj.TransactionID
		updated.PaymentGateway = models.PaymentGatewayMidtrans
		if updated.PaymentStatus == models.PaymentStatusPaid {
			updated.Status = models.RegistrationStatusConfirmed
		}
		return e.store.SaveRegistration(ctx, updated)
	}

	reg.Status = models.RegistrationStatusConfirmed
	reg.PaymentStatus = models.PaymentStatusPaid
	reg.AmountPaid = Round2(amount)
	reg.RemainingAmount = 0
	reg.PaymentID = obj.TransactionID
	reg.PaymentGateway = models.PaymentGatewayMidtrans
	return e.store.SaveRegistration(ctx, reg)
}

// creditInstallments routes the paid amount into the schedule: the
// specific installment when the event names one, otherwise a waterfall
// over unsettled installments in order. Any excess lands on the last
// credited installment, or on the schedule's final installment when
// everything was already settled, so the over-payment always stays
// visible in a transaction log.
func (e *ReconcileEngine) creditInstallments(ctx context.Context, reg *models.Registration, installments []models.Installment, obj *EventObject, amount float64) error {
	notes := fmt.Sprintf("gateway payment, order %s", obj.OrderID)

	if obj.Metadata.InstallmentID != nil {
		_, _, err := e.ledger.ProcessPayment(ctx, *obj.Metadata.InstallmentID, amount, obj.PaymentType, obj.TransactionID, notes, models.SystemActor)
		return err
	}

	left := amount
	lastUnsettled := uint(0)
	for _, inst := range installments {
		if left <= 0 {
			break
		}
		if inst.Settled() {
			continue
		}
		lastUnsettled = inst.ID
		portion := inst.RemainingAmount
		if portion > left {
			portion = left
		}
		if portion <= 0 {
			continue
		}
		if _, _, err := e.ledger.ProcessPayment(ctx, inst.ID, Round2(portion), obj.PaymentType, obj.TransactionID, notes, models.SystemActor); err != nil {
			return err
		}
		left = Round2(left - portion)
	}

	if left > 0 {
		target := lastUnsettled
		if target == 0 {
			target = installments[len(installments)-1].ID
		}
		if _, _, err := e.ledger.ProcessPayment(ctx, target, left, obj.PaymentType, obj.TransactionID, notes+" (excess)", models.SystemActor); err != nil {
			return err
		}
	}
	return nil
}

// createRegistrationFromEvent builds a registration straight from the
// event's customer and line-item data, marked paid immediately. This path
// exists only so a gateway-confirmed payment is never lost; it is flagged
// loudly in logs because it can mint ghost registrations when the gateway
// drops metadata.
func (e *ReconcileEngine) createRegistrationFromEvent(ctx context.Context, obj *EventObject, amount float64) (*models.Registration, error) {
	meta := obj.Metadata
	if meta.EventID == 0 || meta.TicketID == 0 || obj.CustomerEmail == "" {
		return nil, fmt.Errorf("%w: cannot create registration, missing event/ticket/customer data", ErrValidation)
	}
	if _, err := e.store.GetEvent(ctx, meta.EventID); err != nil {
		return nil, fmt.Errorf("event %d: %w", meta.EventID, err)
	}
	if _, err := e.store.GetTicket(ctx, meta.TicketID); err != nil {
		return nil, fmt.Errorf("ticket %d: %w", meta.TicketID, err)
	}

	reg := &models.Registration{
		UUID:            uuid.New().String(),
		EventID:         meta.EventID,
		TicketID:        meta.TicketID,
		CustomerName:    obj.CustomerName,
		CustomerEmail:   obj.CustomerEmail,
		Status:          models.RegistrationStatusConfirmed,
		TotalAmount:     Round2(amount),
		AmountPaid:      Round2(amount),
		RemainingAmount: 0,
		PaymentStatus:   models.PaymentStatusPaid,
		PaymentGateway:  models.PaymentGatewayMidtrans,
		PaymentID:       obj.TransactionID,
	}
	if err := e.store.CreateRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// fireConfirmation dispatches the confirmation side effects off the
// response path. A failed notification never rolls back the ledger; the
// payment is real, the notification is a courtesy.
func (e *ReconcileEngine) fireConfirmation(registrationID uint) {
	e.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reg, err := e.store.GetRegistration(ctx, registrationID)
		if err != nil {
			log.Printf("[Webhook] side effects: load registration %d: %v", registrationID, err)
			return
		}
		if err := e.notifier.PaymentConfirmed(ctx, reg); err != nil {
			log.Printf("[Webhook] side effects failed for registration %d: %v", registrationID, err)
		}
	})
}
