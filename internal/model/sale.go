package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale statuses. Confirmed is the implicit initial state.
const (
	SaleConfirmed = "confirmed"
	SaleCanceled  = "canceled"
)

// Sale is a finalized transaction. Rows are never deleted: cancellation is a
// status change plus stock restitution.
type Sale struct {
	ID         int64           `gorm:"primaryKey"`
	ClientID   int64           `gorm:"not null;index"`
	EmployeeID int64           `gorm:"not null;index"`
	Discount   decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`
	TotalValue decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status     string          `gorm:"type:varchar(20);not null;default:'confirmed';index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Lines    []SaleLine    `gorm:"foreignKey:SaleID"`
	Payments []SalePayment `gorm:"foreignKey:SaleID"`
	Client   *Client       `gorm:"foreignKey:ClientID"`
	Employee *Employee     `gorm:"foreignKey:EmployeeID"`
}

func (Sale) TableName() string { return "sales" }

// SaleLine snapshots the unit price at reservation time.
type SaleLine struct {
	ID                  int64           `gorm:"primaryKey"`
	SaleID              int64           `gorm:"not null;index"`
	ProductID           int64           `gorm:"not null;index"`
	CustomizedProductID int64           `gorm:"not null;index"`
	UnitPrice           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity            int             `gorm:"not null"`

	Product *Product           `gorm:"foreignKey:ProductID"`
	Variant *CustomizedProduct `gorm:"foreignKey:CustomizedProductID"`
}

func (SaleLine) TableName() string { return "sale_lines" }

// SalePayment allocates part of the sale total to a payment method installment.
type SalePayment struct {
	ID                         int64           `gorm:"primaryKey"`
	SaleID                     int64           `gorm:"not null;index"`
	PaymentMethodInstallmentID int64           `gorm:"not null"`
	Value                      decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Installment *PaymentMethodInstallment `gorm:"foreignKey:PaymentMethodInstallmentID"`
}

func (SalePayment) TableName() string { return "sale_payments" }

type PaymentMethod struct {
	ID   int64  `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(60);not null" json:"name"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }

type PaymentMethodInstallment struct {
	ID              int64 `gorm:"primaryKey" json:"id"`
	PaymentMethodID int64 `gorm:"not null;index" json:"payment_method_id"`
	Installments    int   `gorm:"not null;default:1" json:"installments"`

	PaymentMethod *PaymentMethod `gorm:"foreignKey:PaymentMethodID" json:"payment_method,omitempty"`
}

func (PaymentMethodInstallment) TableName() string { return "payment_method_installments" }
