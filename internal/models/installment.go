package models

import (
	"time"

	"gorm.io/gorm"
)

// InstallmentStatus is the lifecycle status of a single installment
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPartial InstallmentStatus = "partial"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
	InstallmentStatusWaived  InstallmentStatus = "waived"
)

// Installment is one dated slice of a registration's total amount owed.
// Created in a batch when the registration is enrolled in a plan and
// mutated only through the ledger service.
type Installment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	RegistrationID uint `gorm:"index:idx_installments_reg_number,priority:1" json:"registration_id"`
	PaymentPlanID  uint `gorm:"index" json:"payment_plan_id"`

	InstallmentNumber int       `gorm:"index:idx_installments_reg_number,priority:2" json:"installment_number"`
	DueDate           time.Time `gorm:"index" json:"due_date"`

	OriginalAmount  float64           `gorm:"type:decimal(15,2)" json:"original_amount"`
	PaidAmount      float64           `gorm:"type:decimal(15,2)" json:"paid_amount"`
	DiscountAmount  float64           `gorm:"type:decimal(15,2)" json:"discount_amount"`
	LateFeeAmount   float64           `gorm:"type:decimal(15,2)" json:"late_fee_amount"`
	RemainingAmount float64           `gorm:"type:decimal(15,2)" json:"remaining_amount"`
	Status          InstallmentStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`

	// Relationships
	Registration Registration  `gorm:"foreignKey:RegistrationID" json:"registration,omitempty"`
	PaymentPlan  PaymentPlan   `gorm:"foreignKey:PaymentPlanID" json:"payment_plan,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:InstallmentID" json:"transactions,omitempty"`
}

// ApplyPayment credits a payment against the installment. Over-payment is
// accepted; remaining floors at zero and the excess stays visible in the
// transaction log.
func (i *Installment) ApplyPayment(amount float64) {
	i.PaidAmount += amount
	i.RemainingAmount = max0(i.OriginalAmount - i.PaidAmount - i.DiscountAmount + i.LateFeeAmount)
	if i.RemainingAmount == 0 {
		i.Status = InstallmentStatusPaid
	} else {
		i.Status = InstallmentStatusPartial
	}
}

// ApplyRefund returns part of what was paid. PaidAmount floors at zero;
// refunding more than was paid is an input error the ledger rejects
// before calling this.
func (i *Installment) ApplyRefund(amount float64) {
	i.PaidAmount = max0(i.PaidAmount - amount)
	i.RemainingAmount = max0(i.OriginalAmount - i.PaidAmount - i.DiscountAmount + i.LateFeeAmount)
	switch {
	case i.RemainingAmount == 0:
		i.Status = InstallmentStatusPaid
	case i.PaidAmount > 0:
		i.Status = InstallmentStatusPartial
	default:
		i.Status = InstallmentStatusPending
	}
}

// ApplyDiscount reduces what is owed. Status becomes waived only when the
// discount settles the installment outright.
func (i *Installment) ApplyDiscount(amount float64) {
	i.DiscountAmount += amount
	i.RemainingAmount = max0(i.OriginalAmount - i.PaidAmount - i.DiscountAmount + i.LateFeeAmount)
	if i.RemainingAmount == 0 {
		i.Status = InstallmentStatusWaived
	}
}

// ApplyLateFee adds an accrued fee on top of what is owed and marks the
// installment overdue. Fees are additive; they are not reduced by discounts.
func (i *Installment) ApplyLateFee(amount float64) {
	i.LateFeeAmount += amount
	i.RemainingAmount = max0(i.OriginalAmount - i.PaidAmount - i.DiscountAmount + i.LateFeeAmount)
	i.Status = InstallmentStatusOverdue
}

// Settled reports whether no money is expected against this installment
func (i *Installment) Settled() bool {
	return i.Status == InstallmentStatusPaid || i.Status == InstallmentStatusWaived
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
