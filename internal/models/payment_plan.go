package models

import (
	"time"

	"gorm.io/gorm"
)

// InstallmentInterval is the spacing between consecutive installments
type InstallmentInterval string

const (
	IntervalWeekly   InstallmentInterval = "weekly"
	IntervalBiweekly InstallmentInterval = "biweekly"
	IntervalMonthly  InstallmentInterval = "monthly"
)

// PaymentPlan defines how a registration's total amount is split into
// dated installments. Treated as immutable once installments have been
// generated from it, except for the late fee policy fields which the
// recalculation job reads on every sweep.
type PaymentPlan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID uint   `gorm:"index" json:"event_id"`
	Name    string `gorm:"type:varchar(255)" json:"name"`

	InstallmentCount     int                 `gorm:"default:1" json:"installment_count"`
	InstallmentInterval  InstallmentInterval `gorm:"type:varchar(20);default:'monthly'" json:"installment_interval"`
	FirstInstallmentDate *time.Time          `json:"first_installment_date"`

	// At most one default plan per event, enforced by the creator
	IsDefault bool `gorm:"default:false" json:"is_default"`

	// Discount policy: percentage off when an installment is settled
	// this many days before its due date
	EarlyPaymentDiscountPct float64 `gorm:"type:decimal(5,2);default:0" json:"early_payment_discount_pct"`
	EarlyPaymentDays        int     `gorm:"default:0" json:"early_payment_days"`

	// Late fee policy
	LateFeeEnabled      bool    `gorm:"default:false" json:"late_fee_enabled"`
	GracePeriodDays     int     `gorm:"default:0" json:"grace_period_days"`
	FixedLateFee        float64 `gorm:"type:decimal(15,2);default:0" json:"fixed_late_fee"`
	MonthlyInterestRate float64 `gorm:"type:decimal(5,2);default:0" json:"monthly_interest_rate"`
	MaxLateFee          float64 `gorm:"type:decimal(15,2);default:0" json:"max_late_fee"`

	// Relationships
	Event Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}
