package models

import (
	"time"

	"gorm.io/gorm"
)

// RegistrationStatus is the lifecycle status of a registration
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusConfirmed RegistrationStatus = "confirmed"
	RegistrationStatusCanceled  RegistrationStatus = "canceled"
)

// PaymentStatus is the aggregate payment status of a registration
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusOverdue PaymentStatus = "overdue"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// Registration links a customer to an event ticket. The money fields
// (TotalAmount, AmountPaid, RemainingAmount, PaymentStatus) are cached
// aggregates recomputed from the installment set; the installments and
// their transactions are the source of truth, never these columns.
type Registration struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID     string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	EventID  uint   `gorm:"index" json:"event_id"`
	TicketID uint   `gorm:"index" json:"ticket_id"`

	CustomerName  string `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail string `gorm:"type:varchar(255);index" json:"customer_email"`

	Status        RegistrationStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentPlanID *uint              `json:"payment_plan_id"`

	TotalAmount     float64        `gorm:"type:decimal(15,2)" json:"total_amount"`
	AmountPaid      float64        `gorm:"type:decimal(15,2)" json:"amount_paid"`
	RemainingAmount float64        `gorm:"type:decimal(15,2)" json:"remaining_amount"`
	PaymentStatus   PaymentStatus  `gorm:"type:varchar(20);default:'pending'" json:"payment_status"`
	PaymentGateway  PaymentGateway `gorm:"type:varchar(50)" json:"payment_gateway"`
	PaymentID       string         `gorm:"type:varchar(100);index" json:"payment_id"`

	// Relationships
	Event        Event         `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Ticket       Ticket        `gorm:"foreignKey:TicketID" json:"ticket,omitempty"`
	PaymentPlan  *PaymentPlan  `gorm:"foreignKey:PaymentPlanID" json:"payment_plan,omitempty"`
	Installments []Installment `gorm:"foreignKey:RegistrationID" json:"installments,omitempty"`
}
