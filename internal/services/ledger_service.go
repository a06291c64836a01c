package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eventpay/internal/models"
)

// LedgerService owns every mutation of installment money. Each operation
// runs as one atomic unit at the store layer and appends exactly one
// Transaction; the transaction log is the only ground truth for what
// happened, independent of the derived installment fields.
//
// None of the operations recompute the registration aggregate; callers
// invoke RecomputeRegistrationStatus afterwards. Keeping the two apart
// lets batch jobs defer aggregation and keeps both independently testable.
type LedgerService struct {
	store Store
	now   func() time.Time
}

func NewLedgerService(store Store) *LedgerService {
	return &LedgerService{store: store, now: time.Now}
}

// ProcessPayment credits a payment against one installment. Over-payment
// is accepted: remaining floors at zero and the full amount stays in the
// transaction log for reconciliation, not silently dropped.
func (s *LedgerService) ProcessPayment(ctx context.Context, installmentID uint, amount float64, method, externalTxID, notes, actor string) (*models.Installment, *models.Transaction, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	return s.store.ApplyLedgerMutation(ctx, installmentID, func(inst *models.Installment) (*models.Transaction, error) {
		inst.ApplyPayment(amount)
		return &models.Transaction{
			UUID:          uuid.New().String(),
			Amount:        amount,
			Type:          models.TransactionTypePayment,
			PaymentMethod: method,
			ExternalTxID:  externalTxID,
			Notes:         notes,
			CreatedBy:     actor,
		}, nil
	})
}

// ProcessRefund returns part of a payment. Rejects refunding more than
// was actually paid; the refund itself is audited like any other mutation.
func (s *LedgerService) ProcessRefund(ctx context.Context, installmentID uint, amount float64, method, externalTxID, notes, actor string) (*models.Installment, *models.Transaction, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
	}
	return s.store.ApplyLedgerMutation(ctx, installmentID, func(inst *models.Installment) (*models.Transaction, error) {
		if amount > inst.PaidAmount {
			return nil, fmt.Errorf("%w: refund %.2f exceeds paid amount %.2f", ErrValidation, amount, inst.PaidAmount)
		}
		inst.ApplyRefund(amount)
		return &models.Transaction{
			UUID:          uuid.New().String(),
			Amount:        amount,
			Type:          models.TransactionTypeRefund,
			PaymentMethod: method,
			ExternalTxID:  externalTxID,
			Notes:         notes,
			CreatedBy:     actor,
		}, nil
	})
}

// ApplyDiscount reduces what is owed on one installment
func (s *LedgerService) ApplyDiscount(ctx context.Context, installmentID uint, discountAmount float64, notes, actor string) (*models.Installment, *models.Transaction, error) {
	if discountAmount <= 0 {
		return nil, nil, fmt.Errorf("%w: discount amount must be positive", ErrValidation)
	}
	return s.store.ApplyLedgerMutation(ctx, installmentID, func(inst *models.Installment) (*models.Transaction, error) {
		inst.ApplyDiscount(discountAmount)
		return &models.Transaction{
			UUID:      uuid.New().String(),
			Amount:    discountAmount,
			Type:      models.TransactionTypeWaiver,
			Notes:     notes,
			CreatedBy: actor,
		}, nil
	})
}

// ApplyLateFee adds an accrued late fee on top of what is owed
func (s *LedgerService) ApplyLateFee(ctx context.Context, installmentID uint, lateFeeAmount float64, notes, actor string) (*models.Installment, *models.Transaction, error) {
	if lateFeeAmount <= 0 {
		return nil, nil, fmt.Errorf("%w: late fee amount must be positive", ErrValidation)
	}
	return s.store.ApplyLedgerMutation(ctx, installmentID, func(inst *models.Installment) (*models.Transaction, error) {
		inst.ApplyLateFee(lateFeeAmount)
		return &models.Transaction{
			UUID:      uuid.New().String(),
			Amount:    lateFeeAmount,
			Type:      models.TransactionTypeAdjustment,
			Notes:     notes,
			CreatedBy: actor,
		}, nil
	})
}

// RecomputeRegistrationStatus refreshes the registration's cached money
// aggregates from its installment set. The cached columns are a
// denormalized projection for fast reads, never the source of truth.
// Registrations with no installments are not managed by this aggregator.
func (s *LedgerService) RecomputeRegistrationStatus(ctx context.Context, registrationID uint) error {
	installments, err := s.store.ListInstallmentsByRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	if len(installments) == 0 {
		return nil
	}

	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return err
	}

	var totalAmount, totalPaid, totalRemaining float64
	anyOverdue := false
	now := s.now()
	for _, inst := range installments {
		totalAmount += inst.OriginalAmount
		totalPaid += inst.PaidAmount
		totalRemaining += inst.RemainingAmount
		if !inst.Settled() && (inst.Status == models.InstallmentStatusOverdue || inst.DueDate.Before(now)) {
			anyOverdue = true
		}
	}

	status := models.PaymentStatusPartial
	switch {
	case totalRemaining == 0:
		status = models.PaymentStatusPaid
	case totalPaid == 0:
		status = models.PaymentStatusPending
	}
	// Fully paid takes precedence over overdue
	if anyOverdue && status != models.PaymentStatusPaid {
		status = models.PaymentStatusOverdue
	}

	reg.TotalAmount = Round2(totalAmount)
	reg.AmountPaid = Round2(totalPaid)
	reg.RemainingAmount = Round2(totalRemaining)
	reg.PaymentStatus = status

	return s.store.SaveRegistration(ctx, reg)
}

// EnrollRegistration generates the registration's installment batch from
// a payment plan. The registration's TotalAmount is the as-sold price;
// the generated installments reproduce it exactly.
func (s *LedgerService) EnrollRegistration(ctx context.Context, registrationID, planID uint) ([]models.Installment, error) {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	plan, err := s.store.GetPaymentPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan.EventID != reg.EventID {
		return nil, fmt.Errorf("%w: plan %d does not belong to event %d", ErrValidation, planID, reg.EventID)
	}

	existing, err := s.store.ListInstallmentsByRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: registration %d already has installments", ErrConflict, registrationID)
	}

	specs, err := BuildSchedule(reg.TotalAmount, plan, reg.CreatedAt)
	if err != nil {
		return nil, err
	}

	installments := make([]models.Installment, 0, len(specs))
	for _, spec := range specs {
		installments = append(installments, models.Installment{
			RegistrationID:    reg.ID,
			PaymentPlanID:     plan.ID,
			InstallmentNumber: spec.Number,
			DueDate:           spec.DueDate,
			OriginalAmount:    spec.Amount,
			RemainingAmount:   spec.Amount,
			Status:            models.InstallmentStatusPending,
		})
	}
	if err := s.store.CreateInstallments(ctx, installments); err != nil {
		return nil, err
	}

	reg.PaymentPlanID = &plan.ID
	reg.RemainingAmount = reg.TotalAmount
	reg.PaymentStatus = models.PaymentStatusPending
	if err := s.store.SaveRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return installments, nil
}
