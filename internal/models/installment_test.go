package models

import "testing"

func newInstallment(original float64) Installment {
	return Installment{
		OriginalAmount:  original,
		RemainingAmount: original,
		Status:          InstallmentStatusPending,
	}
}

func TestApplyPayment(t *testing.T) {
	tests := []struct {
		name          string
		payments      []float64
		wantPaid      float64
		wantRemaining float64
		wantStatus    InstallmentStatus
	}{
		{"partial", []float64{60}, 60, 40, InstallmentStatusPartial},
		{"exact", []float64{100}, 100, 0, InstallmentStatusPaid},
		{"two partials settle", []float64{60, 40}, 100, 0, InstallmentStatusPaid},
		{"overpayment floors at zero", []float64{150}, 150, 0, InstallmentStatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := newInstallment(100)
			for _, p := range tt.payments {
				inst.ApplyPayment(p)
			}
			if inst.PaidAmount != tt.wantPaid {
				t.Errorf("paid = %.2f, want %.2f", inst.PaidAmount, tt.wantPaid)
			}
			if inst.RemainingAmount != tt.wantRemaining {
				t.Errorf("remaining = %.2f, want %.2f", inst.RemainingAmount, tt.wantRemaining)
			}
			if inst.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", inst.Status, tt.wantStatus)
			}
		})
	}
}

func TestApplyDiscount(t *testing.T) {
	inst := newInstallment(100)
	inst.ApplyDiscount(30)
	if inst.RemainingAmount != 70 {
		t.Errorf("remaining = %.2f, want 70", inst.RemainingAmount)
	}
	if inst.Status != InstallmentStatusPending {
		t.Errorf("partial discount changed status to %s", inst.Status)
	}

	inst.ApplyDiscount(70)
	if inst.RemainingAmount != 0 || inst.Status != InstallmentStatusWaived {
		t.Errorf("full discount: remaining = %.2f status = %s, want 0/waived", inst.RemainingAmount, inst.Status)
	}
}

func TestApplyLateFeeStacksOnTop(t *testing.T) {
	inst := newInstallment(100)
	inst.ApplyPayment(60)
	inst.ApplyLateFee(5)

	if inst.RemainingAmount != 45 {
		t.Errorf("remaining = %.2f, want 45", inst.RemainingAmount)
	}
	if inst.Status != InstallmentStatusOverdue {
		t.Errorf("status = %s, want overdue", inst.Status)
	}

	// Paying principal plus fee settles it
	inst.ApplyPayment(45)
	if inst.RemainingAmount != 0 || inst.Status != InstallmentStatusPaid {
		t.Errorf("after settling: remaining = %.2f status = %s", inst.RemainingAmount, inst.Status)
	}
}

func TestSettled(t *testing.T) {
	for status, want := range map[InstallmentStatus]bool{
		InstallmentStatusPending: false,
		InstallmentStatusPartial: false,
		InstallmentStatusOverdue: false,
		InstallmentStatusPaid:    true,
		InstallmentStatusWaived:  true,
	} {
		inst := Installment{Status: status}
		if inst.Settled() != want {
			t.Errorf("Settled() for %s = %v, want %v", status, !want, want)
		}
	}
}
