package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"eventpay/internal/models"
)

// Store is the persistence surface the payment engines run on. The ledger
// service and the reconciliation engine take it as an injected dependency
// so tests can substitute an in-memory fake.
type Store interface {
	// Installments
	GetInstallment(ctx context.Context, id uint) (*models.Installment, error)
	ListInstallmentsByRegistration(ctx context.Context, registrationID uint) ([]models.Installment, error)
	// ListOverdueCandidates returns unsettled installments past due,
	// optionally scoped to one event, with their plan preloaded.
	ListOverdueCandidates(ctx context.Context, eventID *uint, now time.Time) ([]models.Installment, error)
	CreateInstallments(ctx context.Context, installments []models.Installment) error

	// ApplyLedgerMutation locks the installment row, runs mutate on it,
	// and persists the updated installment plus the returned transaction
	// as a single atomic unit. Two concurrent mutations of the same
	// installment serialize on the row lock; neither is lost.
	ApplyLedgerMutation(ctx context.Context, installmentID uint, mutate func(inst *models.Installment) (*models.Transaction, error)) (*models.Installment, *models.Transaction, error)

	// Registrations
	GetRegistration(ctx context.Context, id uint) (*models.Registration, error)
	FindRegistrationByStatus(ctx context.Context, eventID uint, email string, ticketID uint, status models.PaymentStatus) (*models.Registration, error)
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	SaveRegistration(ctx context.Context, reg *models.Registration) error

	// Catalog lookups
	GetEvent(ctx context.Context, id uint) (*models.Event, error)
	GetTicket(ctx context.Context, id uint) (*models.Ticket, error)
	GetPaymentPlan(ctx context.Context, id uint) (*models.PaymentPlan, error)

	// Webhook event log / durable idempotency set
	InsertWebhookEventIfAbsent(ctx context.Context, ev *models.WebhookEvent) (bool, error)
	UpdateWebhookEvent(ctx context.Context, eventID string, status models.WebhookEventStatus, errMsg string, registrationID *uint) error
}

// GormStore is the postgres-backed Store
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetInstallment(ctx context.Context, id uint) (*models.Installment, error) {
	var inst models.Installment
	if err := s.db.WithContext(ctx).First(&inst, id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &inst, nil
}

func (s *GormStore) ListInstallmentsByRegistration(ctx context.Context, registrationID uint) ([]models.Installment, error) {
	var installments []models.Installment
	err := s.db.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("installment_number asc").
		Find(&installments).Error
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (s *GormStore) ListOverdueCandidates(ctx context.Context, eventID *uint, now time.Time) ([]models.Installment, error) {
	query := s.db.WithContext(ctx).
		Preload("PaymentPlan").
		Where("installments.status NOT IN ?", []models.InstallmentStatus{
			models.InstallmentStatusPaid,
			models.InstallmentStatusWaived,
		}).
		Where("installments.due_date < ?", now)

	if eventID != nil {
		query = query.
			Joins("JOIN registrations ON registrations.id = installments.registration_id").
			Where("registrations.event_id = ?", *eventID)
	}

	var installments []models.Installment
	if err := query.Find(&installments).Error; err != nil {
		return nil, err
	}
	return installments, nil
}

func (s *GormStore) CreateInstallments(ctx context.Context, installments []models.Installment) error {
	return s.db.WithContext(ctx).Create(&installments).Error
}

func (s *GormStore) ApplyLedgerMutation(ctx context.Context, installmentID uint, mutate func(inst *models.Installment) (*models.Transaction, error)) (*models.Installment, *models.Transaction, error) {
	var inst models.Installment
	var txn *models.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock so a manual confirmation racing a gateway webhook
		// serializes instead of losing an update
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&inst, installmentID).Error; err != nil {
			return translateGormErr(err)
		}

		var err error
		txn, err = mutate(&inst)
		if err != nil {
			return err
		}

		if err := tx.Save(&inst).Error; err != nil {
			return err
		}

		if txn != nil {
			txn.InstallmentID = inst.ID
			txn.RegistrationID = inst.RegistrationID
			if err := tx.Create(txn).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &inst, txn, nil
}

func (s *GormStore) GetRegistration(ctx context.Context, id uint) (*models.Registration, error) {
	var reg models.Registration
	if err := s.db.WithContext(ctx).First(&reg, id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &reg, nil
}

func (s *GormStore) FindRegistrationByStatus(ctx context.Context, eventID uint, email string, ticketID uint, status models.PaymentStatus) (*models.Registration, error) {
	var reg models.Registration
	err := s.db.WithContext(ctx).
		Where("event_id = ? AND customer_email = ? AND ticket_id = ? AND payment_status = ?",
			eventID, email, ticketID, status).
		Order("created_at asc").
		First(&reg).Error
	if err != nil {
		return nil, translateGormErr(err)
	}
	return &reg, nil
}

func (s *GormStore) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	return s.db.WithContext(ctx).Create(reg).Error
}

func (s *GormStore) SaveRegistration(ctx context.Context, reg *models.Registration) error {
	return s.db.WithContext(ctx).Save(reg).Error
}

func (s *GormStore) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var ev models.Event
	if err := s.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &ev, nil
}

func (s *GormStore) GetTicket(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &t, nil
}

func (s *GormStore) GetPaymentPlan(ctx context.Context, id uint) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	if err := s.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, translateGormErr(err)
	}
	return &plan, nil
}

// InsertWebhookEventIfAbsent records the event id with an atomic
// insert-if-absent. Returns false when the id was already recorded, which
// is how duplicate deliveries are detected. Two concurrent deliveries of
// the same event cannot both pass: the unique index arbitrates.
func (s *GormStore) InsertWebhookEventIfAbsent(ctx context.Context, ev *models.WebhookEvent) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) UpdateWebhookEvent(ctx context.Context, eventID string, status models.WebhookEventStatus, errMsg string, registrationID *uint) error {
	updates := map[string]interface{}{
		"status": status,
		"error":  errMsg,
	}
	if registrationID != nil {
		updates["registration_id"] = *registrationID
	}
	return s.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
}

func translateGormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
