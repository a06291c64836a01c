package services

import (
	"errors"
	"testing"
	"time"

	"eventpay/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildScheduleMonthlyClampsToMonthEnd(t *testing.T) {
	plan := &models.PaymentPlan{
		InstallmentCount:    12,
		InstallmentInterval: models.IntervalMonthly,
	}

	specs, err := BuildSchedule(1200.00, plan, date(2025, time.January, 31))
	if err != nil {
		t.Fatalf("BuildSchedule: %v", err)
	}
	if len(specs) != 12 {
		t.Fatalf("expected 12 installments, got %d", len(specs))
	}

	wantDue := []time.Time{
		date(2025, time.January, 31),
		date(2025, time.February, 28),
		date(2025, time.March, 31),
		date(2025, time.April, 30),
		date(2025, time.May, 31),
		date(2025, time.June, 30),
		date(2025, time.July, 31),
		date(2025, time.August, 31),
		date(2025, time.September, 30),
		date(2025, time.October, 31),
		date(2025, time.November, 30),
		date(2025, time.December, 31),
	}
	for i, spec := range specs {
		if spec.Number != i+1 {
			t.Errorf("installment %d: number = %d", i, spec.Number)
		}
		if spec.Amount != 100.00 {
			t.Errorf("installment %d: amount = %.2f, want 100.00", i+1, spec.Amount)
		}
		if !spec.DueDate.Equal(wantDue[i]) {
			t.Errorf("installment %d: due = %s, want %s", i+1, spec.DueDate, wantDue[i])
		}
	}
}

func TestBuildScheduleRemainderLandsOnLast(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		count   int
		amounts []float64
	}{
		{"even split", 300.00, 3, []float64{100.00, 100.00, 100.00}},
		{"repeating decimal", 100.00, 3, []float64{33.33, 33.33, 33.34}},
		{"remainder shrinks last", 100.00, 6, []float64{16.67, 16.67, 16.67, 16.67, 16.67, 16.65}},
		{"single installment", 99.99, 1, []float64{99.99}},
		{"zero total", 0, 4, []float64{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &models.PaymentPlan{
				InstallmentCount:    tt.count,
				InstallmentInterval: models.IntervalMonthly,
			}
			specs, err := BuildSchedule(tt.total, plan, date(2025, time.March, 1))
			if err != nil {
				t.Fatalf("BuildSchedule: %v", err)
			}
			var sum float64
			for i, spec := range specs {
				if spec.Amount != tt.amounts[i] {
					t.Errorf("installment %d: amount = %.2f, want %.2f", i+1, spec.Amount, tt.amounts[i])
				}
				sum += spec.Amount
			}
			if Round2(sum) != tt.total {
				t.Errorf("schedule sums to %.2f, want %.2f", sum, tt.total)
			}
		})
	}
}

func TestBuildScheduleIntervals(t *testing.T) {
	anchor := date(2025, time.June, 2)

	tests := []struct {
		interval models.InstallmentInterval
		second   time.Time
		third    time.Time
	}{
		{models.IntervalWeekly, date(2025, time.June, 9), date(2025, time.June, 16)},
		{models.IntervalBiweekly, date(2025, time.June, 16), date(2025, time.June, 30)},
		{models.IntervalMonthly, date(2025, time.July, 2), date(2025, time.August, 2)},
	}
	for _, tt := range tests {
		t.Run(string(tt.interval), func(t *testing.T) {
			plan := &models.PaymentPlan{InstallmentCount: 3, InstallmentInterval: tt.interval}
			specs, err := BuildSchedule(90, plan, anchor)
			if err != nil {
				t.Fatalf("BuildSchedule: %v", err)
			}
			if !specs[0].DueDate.Equal(anchor) {
				t.Errorf("first due = %s, want anchor %s", specs[0].DueDate, anchor)
			}
			if !specs[1].DueDate.Equal(tt.second) {
				t.Errorf("second due = %s, want %s", specs[1].DueDate, tt.second)
			}
			if !specs[2].DueDate.Equal(tt.third) {
				t.Errorf("third due = %s, want %s", specs[2].DueDate, tt.third)
			}
		})
	}
}

func TestBuildSchedulePinnedFirstDate(t *testing.T) {
	pinned := date(2025, time.September, 15)
	plan := &models.PaymentPlan{
		InstallmentCount:     2,
		InstallmentInterval:  models.IntervalMonthly,
		FirstInstallmentDate: &pinned,
	}

	specs, err := BuildSchedule(200, plan, date(2025, time.August, 1))
	if err != nil {
		t.Fatalf("BuildSchedule: %v", err)
	}
	if !specs[0].DueDate.Equal(pinned) {
		t.Errorf("first due = %s, want pinned %s", specs[0].DueDate, pinned)
	}
}

func TestBuildScheduleRejectsBadInput(t *testing.T) {
	anchor := date(2025, time.January, 1)

	if _, err := BuildSchedule(-1, &models.PaymentPlan{InstallmentCount: 3}, anchor); !errors.Is(err, ErrValidation) {
		t.Errorf("negative total: err = %v, want ErrValidation", err)
	}
	if _, err := BuildSchedule(100, &models.PaymentPlan{InstallmentCount: 0}, anchor); !errors.Is(err, ErrValidation) {
		t.Errorf("zero count: err = %v, want ErrValidation", err)
	}
}
