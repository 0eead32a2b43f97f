package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// BirthDateLayout is the wire format of birth dates.
const BirthDateLayout = "2006-01-02"

// ─── Clients ─────────────────────────────────────────────────────────────────

type ContactInput struct {
	Type  string `json:"type"  validate:"required,max=20"`
	Value string `json:"value" validate:"required,max=120"`
}

type ChildInput struct {
	Name          string `json:"name"            validate:"required,max=120"`
	BirthDate     string `json:"birth_date"      validate:"required,datetime=2006-01-02"`
	ProductSizeID int64  `json:"product_size_id" validate:"required,min=1"`
}

type CreateClientRequest struct {
	Name         string         `json:"name"  validate:"required,min=2,max=120"`
	Gender       string         `json:"gender" validate:"required,oneof=F M"`
	BirthDate    *string        `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	CPF          *string        `json:"cpf"   validate:"omitempty,max=14"`
	Mail         *string        `json:"mail"  validate:"omitempty,email"`
	Phone        *string        `json:"phone" validate:"omitempty,max=20"`
	CEP          *string        `json:"cep"   validate:"omitempty,max=9"`
	Address      *string        `json:"address"`
	City         *string        `json:"city"`
	Neighborhood *string        `json:"neighborhood"`
	State        *string        `json:"state" validate:"omitempty,len=2"`
	Number       *string        `json:"number" validate:"omitempty,max=10"`
	Complement   *string        `json:"complement"`
	Contacts     []ContactInput `json:"contacts" validate:"omitempty,dive"`
	Children     []ChildInput   `json:"children" validate:"omitempty,dive"`
}

// UpdateClientRequest: nil fields are left untouched. A non-nil Contacts or
// Children replaces the whole list; an empty one clears it. An empty
// BirthDate clears it.
type UpdateClientRequest struct {
	Name         *string         `json:"name"  validate:"omitempty,min=2,max=120"`
	Gender       *string         `json:"gender" validate:"omitempty,oneof=F M"`
	BirthDate    *string         `json:"birth_date"`
	CPF          *string         `json:"cpf"   validate:"omitempty,max=14"`
	Mail         *string         `json:"mail"  validate:"omitempty,email"`
	Phone        *string         `json:"phone" validate:"omitempty,max=20"`
	CEP          *string         `json:"cep"   validate:"omitempty,max=9"`
	Address      *string         `json:"address"`
	City         *string         `json:"city"`
	Neighborhood *string         `json:"neighborhood"`
	State        *string         `json:"state" validate:"omitempty,len=2"`
	Number       *string         `json:"number" validate:"omitempty,max=10"`
	Complement   *string         `json:"complement"`
	Contacts     *[]ContactInput `json:"contacts" validate:"omitempty,dive"`
	Children     *[]ChildInput   `json:"children" validate:"omitempty,dive"`
}

// ClientFilter: the child_* filters keep clients with at least one child
// matching all of them. Dates use BirthDateLayout.
type ClientFilter struct {
	Name          string `form:"name"`
	CPF           string `form:"cpf"`
	ChildName     string `form:"child_name"`
	ChildBornFrom string `form:"child_born_from"`
	ChildBornTo   string `form:"child_born_to"`
	Limit         int    `form:"limit,default=50" validate:"min=0,max=500"`
	Offset        int    `form:"offset"           validate:"min=0"`
}

type ContactResponse struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type ChildResponse struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	BirthDate       string `json:"birth_date"`
	ProductSizeID   int64  `json:"product_size_id"`
	ProductSizeName string `json:"product_size_name"`
}

type ClientResponse struct {
	ClientSnapshot
	Complement *string           `json:"complement"`
	Gender     *string           `json:"gender"`
	BirthDate  *string           `json:"birth_date"`
	Contacts   []ContactResponse `json:"contacts"`
	Children   []ChildResponse   `json:"children"`
	CreatedAt  time.Time         `json:"created_at"`
}

type ClientListResponse struct {
	Count   int64            `json:"count"`
	Clients []ClientResponse `json:"clients"`
}

// ─── Employees ───────────────────────────────────────────────────────────────

type UpdateEmployeeRequest struct {
	Active       *bool            `json:"active"`
	EntryAllowed *bool            `json:"entry_allowed"`
	Commission   *decimal.Decimal `json:"commission"`
}

type EmployeeResponse struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Mail         string          `json:"mail"`
	Type         string          `json:"type"`
	EntryAllowed bool            `json:"entry_allowed"`
	Active       bool            `json:"active"`
	Commission   decimal.Decimal `json:"commission"`
}

type EmployeeSalesFilter struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit,default=50" validate:"min=0,max=500"`
	Offset int    `form:"offset"           validate:"min=0"`
}

type EmployeeSaleItem struct {
	SaleID         int64           `json:"sale_id"`
	CreatedAt      time.Time       `json:"created_at"`
	Status         string          `json:"status"`
	ClientName     string          `json:"client_name"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Commission     decimal.Decimal `json:"commission"`
	PaymentSummary string          `json:"payment_summary"`
}

type EmployeeSalesResponse struct {
	Count int64              `json:"count"`
	Sales []EmployeeSaleItem `json:"sales"`
}

type EmployeeSummaryItem struct {
	PaymentMethodID   int64           `json:"payment_method_id"`
	PaymentMethodName string          `json:"payment_method_name"`
	Sales             int64           `json:"sales"`
	Value             decimal.Decimal `json:"value"`
	Commission        decimal.Decimal `json:"commission"`
}

type EmployeeSummaryResponse struct {
	Methods         []EmployeeSummaryItem `json:"methods"`
	TotalSales      int64                 `json:"total_sales"`
	TotalValue      decimal.Decimal       `json:"total_value"`
	TotalCommission decimal.Decimal       `json:"total_commission"`
}

// ─── Events ──────────────────────────────────────────────────────────────────

type EventFilter struct {
	UserID      *int64 `form:"user_id"`
	EventNameID *int64 `form:"event_name_id"`
	From        string `form:"from"`
	To          string `form:"to"`
	Limit       int    `form:"limit,default=50" validate:"min=0,max=500"`
	Offset      int    `form:"offset"           validate:"min=0"`
}

type EventResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type EventListResponse struct {
	Count  int64           `json:"count"`
	Events []EventResponse `json:"events"`
}
