package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"eventpay/internal/models"
)

// SweepResult summarizes one late-fee sweep
type SweepResult struct {
	Scanned      int     `json:"scanned"`
	Applied      int     `json:"applied"`
	Skipped      int     `json:"skipped"`
	TotalFees    float64 `json:"total_fees"`
	FailedInstls []uint  `json:"failed_installments,omitempty"`
}

// LateFeeRecalculator tops up accrued late fees on overdue installments.
// Safe to re-run at any time: it computes the fee each installment should
// carry as of now and applies only the positive delta against what is
// already recorded, so repeated sweeps never compound fees.
type LateFeeRecalculator struct {
	store  Store
	ledger *LedgerService
	now    func() time.Time
}

func NewLateFeeRecalculator(store Store, ledger *LedgerService) *LateFeeRecalculator {
	return &LateFeeRecalculator{store: store, ledger: ledger, now: time.Now}
}

// Run sweeps all overdue, unsettled installments, optionally scoped to
// one event. Applied fees are attributed to the system actor.
func (r *LateFeeRecalculator) Run(ctx context.Context, eventID *uint) (*SweepResult, error) {
	now := r.now()
	candidates, err := r.store.ListOverdueCandidates(ctx, eventID, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Scanned: len(candidates)}
	touchedRegistrations := make(map[uint]struct{})

	for _, inst := range candidates {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		delta := r.feeDelta(&inst, now)
		if delta <= 0 {
			result.Skipped++
			continue
		}

		notes := fmt.Sprintf("late fee sweep: %d days overdue", daysOverdue(inst.DueDate, now))
		if _, _, err := r.ledger.ApplyLateFee(ctx, inst.ID, delta, notes, models.SystemActor); err != nil {
			log.Printf("[LateFee] failed to apply fee to installment %d: %v", inst.ID, err)
			result.FailedInstls = append(result.FailedInstls, inst.ID)
			continue
		}
		result.Applied++
		result.TotalFees = Round2(result.TotalFees + delta)
		touchedRegistrations[inst.RegistrationID] = struct{}{}
	}

	for regID := range touchedRegistrations {
		if err := r.ledger.RecomputeRegistrationStatus(ctx, regID); err != nil {
			log.Printf("[LateFee] failed to recompute registration %d: %v", regID, err)
		}
	}

	log.Printf("[LateFee] sweep done: scanned=%d applied=%d skipped=%d fees=%.2f",
		result.Scanned, result.Applied, result.Skipped, result.TotalFees)
	return result, nil
}

// feeDelta returns how much fee is still missing on the installment as of
// now. Zero or negative means nothing to apply.
func (r *LateFeeRecalculator) feeDelta(inst *models.Installment, now time.Time) float64 {
	plan := inst.PaymentPlan
	if !plan.LateFeeEnabled {
		return 0
	}

	overdueDays := daysOverdue(inst.DueDate, now)
	if overdueDays <= plan.GracePeriodDays {
		return 0
	}
	interestDays := overdueDays - plan.GracePeriodDays

	// Interest accrues on the principal still owed, not on prior fees;
	// otherwise re-running the sweep would compound.
	principalDue := inst.OriginalAmount - inst.PaidAmount - inst.DiscountAmount
	if principalDue < 0 {
		principalDue = 0
	}

	interest := principalDue * (plan.MonthlyInterestRate / 100) * (float64(interestDays) / 30)
	calculated := plan.FixedLateFee + interest
	if plan.MaxLateFee > 0 {
		calculated = math.Min(calculated, plan.MaxLateFee)
	}
	return Round2(calculated - inst.LateFeeAmount)
}

func daysOverdue(dueDate, now time.Time) int {
	if !dueDate.Before(now) {
		return 0
	}
	return int(now.Sub(dueDate).Hours() / 24)
}
