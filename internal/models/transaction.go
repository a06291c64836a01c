package models

import (
	"time"
)

// TransactionType classifies a ledger mutation
type TransactionType string

const (
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeWaiver     TransactionType = "waiver"
)

// SystemActor identifies automated jobs in the audit trail, distinct from
// any human actor.
const SystemActor = "system"

// Transaction is the append-only audit record of one ledger mutation
// against one installment. Rows are never updated or deleted; they are
// the ground truth for how an installment reached its current amounts.
type Transaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UUID           string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	InstallmentID  uint   `gorm:"index" json:"installment_id"`
	RegistrationID uint   `gorm:"index" json:"registration_id"`

	Amount        float64         `gorm:"type:decimal(15,2)" json:"amount"`
	Type          TransactionType `gorm:"type:varchar(20)" json:"type"`
	PaymentMethod string          `gorm:"type:varchar(100)" json:"payment_method"`
	ExternalTxID  string          `gorm:"type:varchar(100);index" json:"external_tx_id"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedBy     string          `gorm:"type:varchar(255)" json:"created_by"`

	// Relationships
	Installment Installment `gorm:"foreignKey:InstallmentID" json:"installment,omitempty"`
}
