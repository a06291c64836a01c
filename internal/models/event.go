package models

import (
	"time"

	"gorm.io/gorm"
)

// Event represents an event that sells tickets. Catalog management lives
// elsewhere; only the fields the payment engine needs are modeled here.
type Event struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name     string `gorm:"type:varchar(255)" json:"name"`
	OwnerUID string `gorm:"type:varchar(128);index" json:"owner_uid"`

	// Relationships
	Tickets       []Ticket       `gorm:"foreignKey:EventID" json:"tickets,omitempty"`
	PaymentPlans  []PaymentPlan  `gorm:"foreignKey:EventID" json:"payment_plans,omitempty"`
	Registrations []Registration `gorm:"foreignKey:EventID" json:"registrations,omitempty"`
}

// Ticket is a purchasable ticket type within an event
type Ticket struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	EventID uint    `gorm:"index" json:"event_id"`
	Name    string  `gorm:"type:varchar(255)" json:"name"`
	Price   float64 `gorm:"type:decimal(15,2)" json:"price"`

	// Relationships
	Event Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}
