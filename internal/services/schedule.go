package services

import (
	"fmt"
	"math"
	"time"

	"eventpay/internal/models"
)

// InstallmentSpec is one entry of a computed installment schedule
type InstallmentSpec struct {
	Number  int
	DueDate time.Time
	Amount  float64
}

// BuildSchedule splits a total amount into the plan's installments.
// The anchor date is the registration creation time unless the plan pins
// a first installment date. Per-installment amounts are rounded half-up
// to 2 decimals and the rounding remainder lands on the last installment,
// so the schedule always sums to exactly totalAmount. A zero total still
// yields zero-amount installments; the caller decides whether to skip
// scheduling for free registrations.
func BuildSchedule(totalAmount float64, plan *models.PaymentPlan, anchor time.Time) ([]InstallmentSpec, error) {
	if totalAmount < 0 {
		return nil, fmt.Errorf("%w: total amount must be >= 0", ErrValidation)
	}
	count := plan.InstallmentCount
	if count < 1 {
		return nil, fmt.Errorf("%w: installment count must be >= 1", ErrValidation)
	}

	start := anchor
	if plan.FirstInstallmentDate != nil {
		start = *plan.FirstInstallmentDate
	}

	per := Round2(totalAmount / float64(count))

	specs := make([]InstallmentSpec, 0, count)
	for i := 0; i < count; i++ {
		amount := per
		if i == count-1 {
			amount = Round2(totalAmount - per*float64(count-1))
		}
		specs = append(specs, InstallmentSpec{
			Number:  i + 1,
			DueDate: dueDateAt(start, plan.InstallmentInterval, i),
			Amount:  amount,
		})
	}
	return specs, nil
}

func dueDateAt(anchor time.Time, interval models.InstallmentInterval, i int) time.Time {
	switch interval {
	case models.IntervalWeekly:
		return anchor.AddDate(0, 0, 7*i)
	case models.IntervalBiweekly:
		return anchor.AddDate(0, 0, 14*i)
	default:
		return addMonths(anchor, i)
	}
}

// addMonths advances by calendar months and clamps to month end, so
// Jan 31 + 1 month = Feb 28. time.AddDate would normalize that to Mar 2/3
// instead, which is not how payment due dates roll over.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Round2 rounds to 2 decimal places, half away from zero
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
