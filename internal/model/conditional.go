package model

import "time"

// Conditional statuses. Returned and Canceled are terminal.
const (
	ConditionalPending  = "pending"
	ConditionalReturned = "returned"
	ConditionalCanceled = "canceled"
)

// Conditional is a temporary stock hold lent to a client.
type Conditional struct {
	ID         int64  `gorm:"primaryKey"`
	ClientID   int64  `gorm:"not null;index"`
	EmployeeID int64  `gorm:"not null;index"`
	Status     string `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Lines    []ConditionalLine `gorm:"foreignKey:ConditionalID"`
	Client   *Client           `gorm:"foreignKey:ClientID"`
	Employee *Employee         `gorm:"foreignKey:EmployeeID"`
}

func (Conditional) TableName() string { return "conditionals" }

// IsTerminal reports whether no further status transition is allowed.
func (c *Conditional) IsTerminal() bool {
	return c.Status == ConditionalReturned || c.Status == ConditionalCanceled
}

type ConditionalLine struct {
	ID                  int64 `gorm:"primaryKey"`
	ConditionalID       int64 `gorm:"not null;index"`
	ProductID           int64 `gorm:"not null;index"`
	CustomizedProductID int64 `gorm:"not null;index"`
	Quantity            int   `gorm:"not null"`

	Product *Product           `gorm:"foreignKey:ProductID"`
	Variant *CustomizedProduct `gorm:"foreignKey:CustomizedProductID"`
}

func (ConditionalLine) TableName() string { return "conditional_lines" }
