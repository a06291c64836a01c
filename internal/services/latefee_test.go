package services

import (
	"context"
	"testing"
	"time"

	"eventpay/internal/models"
)

func seedOverdueInstallment(store *fakeStore, plan *models.PaymentPlan, due time.Time, original float64) (*models.Registration, *models.Installment) {
	reg := store.addRegistration(models.Registration{
		EventID:       1,
		TicketID:      1,
		CustomerEmail: "bob@example.com",
		PaymentStatus: models.PaymentStatusPending,
	})
	inst := store.addInstallment(models.Installment{
		RegistrationID:    reg.ID,
		PaymentPlanID:     plan.ID,
		InstallmentNumber: 1,
		DueDate:           due,
		OriginalAmount:    original,
		RemainingAmount:   original,
		Status:            models.InstallmentStatusPending,
	})
	return reg, inst
}

func newSweeper(store *fakeStore, now time.Time) *LateFeeRecalculator {
	ledger := NewLedgerService(store)
	ledger.now = func() time.Time { return now }
	sweeper := NewLateFeeRecalculator(store, ledger)
	sweeper.now = ledger.now
	return sweeper
}

func TestLateFeeSweepAppliesFixedPlusInterest(t *testing.T) {
	store := newFakeStore()
	plan := store.addPlan(models.PaymentPlan{
		EventID:             1,
		LateFeeEnabled:      true,
		GracePeriodDays:     3,
		FixedLateFee:        5,
		MonthlyInterestRate: 2,
	})
	// 34 days past due, 3 grace days: 31 interest days on 100 principal
	// at 2%/month = 2.07, plus the 5 fixed fee.
	reg, inst := seedOverdueInstallment(store, plan, date(2025, time.January, 1), 100)
	sweeper := newSweeper(store, date(2025, time.February, 4))

	result, err := sweeper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Scanned != 1 || result.Applied != 1 {
		t.Fatalf("scanned=%d applied=%d, want 1/1", result.Scanned, result.Applied)
	}
	if result.TotalFees != 7.07 {
		t.Errorf("total fees = %.2f, want 7.07", result.TotalFees)
	}

	got := store.installments[inst.ID]
	if got.LateFeeAmount != 7.07 || got.RemainingAmount != 107.07 {
		t.Errorf("fee = %.2f remaining = %.2f, want 7.07/107.07", got.LateFeeAmount, got.RemainingAmount)
	}
	if got.Status != models.InstallmentStatusOverdue {
		t.Errorf("status = %s, want overdue", got.Status)
	}

	txns := store.transactionsFor(inst.ID)
	if len(txns) != 1 || txns[0].CreatedBy != models.SystemActor {
		t.Fatalf("expected one system transaction, got %+v", txns)
	}

	updatedReg, _ := store.GetRegistration(context.Background(), reg.ID)
	if updatedReg.PaymentStatus != models.PaymentStatusOverdue {
		t.Errorf("registration status = %s, want overdue", updatedReg.PaymentStatus)
	}
}

func TestLateFeeSweepIsIdempotent(t *testing.T) {
	store := newFakeStore()
	plan := store.addPlan(models.PaymentPlan{
		EventID:             1,
		LateFeeEnabled:      true,
		GracePeriodDays:     0,
		FixedLateFee:        10,
		MonthlyInterestRate: 1.5,
	})
	_, inst := seedOverdueInstallment(store, plan, date(2025, time.March, 1), 200)
	sweeper := newSweeper(store, date(2025, time.April, 10))

	if _, err := sweeper.Run(context.Background(), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	feeAfterFirst := store.installments[inst.ID].LateFeeAmount

	result, err := sweeper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Applied != 0 || result.Skipped != 1 {
		t.Errorf("second run applied=%d skipped=%d, want 0/1", result.Applied, result.Skipped)
	}
	if got := store.installments[inst.ID].LateFeeAmount; got != feeAfterFirst {
		t.Errorf("fee compounded from %.2f to %.2f", feeAfterFirst, got)
	}
	if got := len(store.transactionsFor(inst.ID)); got != 1 {
		t.Errorf("transaction count = %d after two sweeps, want 1", got)
	}
}

func TestLateFeeSweepAdvancesWithTime(t *testing.T) {
	store := newFakeStore()
	plan := store.addPlan(models.PaymentPlan{
		EventID:             1,
		LateFeeEnabled:      true,
		MonthlyInterestRate: 3,
	})
	_, inst := seedOverdueInstallment(store, plan, date(2025, time.May, 1), 100)

	if _, err := newSweeper(store, date(2025, time.May, 31)).Run(context.Background(), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := store.installments[inst.ID].LateFeeAmount

	result, err := newSweeper(store, date(2025, time.June, 30)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Applied != 1 {
		t.Fatalf("later sweep applied=%d, want 1", result.Applied)
	}
	second := store.installments[inst.ID].LateFeeAmount
	if second <= first {
		t.Errorf("fee did not grow with time: %.2f -> %.2f", first, second)
	}
}

func TestLateFeeSweepSkips(t *testing.T) {
	now := date(2025, time.July, 10)

	tests := []struct {
		name string
		plan models.PaymentPlan
		due  time.Time
	}{
		{
			name: "plan without late fees",
			plan: models.PaymentPlan{EventID: 1, LateFeeEnabled: false},
			due:  date(2025, time.June, 1),
		},
		{
			name: "inside grace period",
			plan: models.PaymentPlan{EventID: 1, LateFeeEnabled: true, GracePeriodDays: 7, FixedLateFee: 5},
			due:  date(2025, time.July, 5),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			plan := store.addPlan(tt.plan)
			_, inst := seedOverdueInstallment(store, plan, tt.due, 100)

			result, err := newSweeper(store, now).Run(context.Background(), nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if result.Applied != 0 {
				t.Errorf("applied = %d, want 0", result.Applied)
			}
			if got := store.installments[inst.ID].LateFeeAmount; got != 0 {
				t.Errorf("fee = %.2f, want 0", got)
			}
		})
	}
}

func TestLateFeeSweepHonorsCap(t *testing.T) {
	store := newFakeStore()
	plan := store.addPlan(models.PaymentPlan{
		EventID:             1,
		LateFeeEnabled:      true,
		FixedLateFee:        20,
		MonthlyInterestRate: 5,
		MaxLateFee:          25,
	})
	_, inst := seedOverdueInstallment(store, plan, date(2024, time.January, 1), 1000)

	if _, err := newSweeper(store, date(2025, time.January, 1)).Run(context.Background(), nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := store.installments[inst.ID].LateFeeAmount; got != 25 {
		t.Errorf("fee = %.2f, want cap 25", got)
	}
}

func TestLateFeeSweepScopesToEvent(t *testing.T) {
	store := newFakeStore()
	planA := store.addPlan(models.PaymentPlan{EventID: 1, LateFeeEnabled: true, FixedLateFee: 5})
	planB := store.addPlan(models.PaymentPlan{EventID: 2, LateFeeEnabled: true, FixedLateFee: 5})

	regA, instA := seedOverdueInstallment(store, planA, date(2025, time.January, 1), 100)
	store.registrations[regA.ID].EventID = 1
	regB, instB := seedOverdueInstallment(store, planB, date(2025, time.January, 1), 100)
	store.registrations[regB.ID].EventID = 2

	eventID := uint(1)
	result, err := newSweeper(store, date(2025, time.February, 1)).Run(context.Background(), &eventID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Scanned != 1 || result.Applied != 1 {
		t.Errorf("scanned=%d applied=%d, want 1/1", result.Scanned, result.Applied)
	}
	if store.installments[instA.ID].LateFeeAmount == 0 {
		t.Errorf("event 1 installment was not swept")
	}
	if store.installments[instB.ID].LateFeeAmount != 0 {
		t.Errorf("event 2 installment swept despite scope")
	}
}
