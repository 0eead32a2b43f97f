package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentInput struct {
	PaymentMethodInstallmentID int64           `json:"payment_method_installment_id" validate:"required"`
	Value                      decimal.Decimal `json:"value"`
}

// CreateSaleRequest: Discount is a fraction in [0, 1).
type CreateSaleRequest struct {
	ClientID      int64                     `json:"client_id"   validate:"required"`
	EmployeeID    int64                     `json:"employee_id" validate:"required"`
	Discount      decimal.Decimal           `json:"discount"`
	TotalValue    decimal.Decimal           `json:"total_value"`
	ForceAddition bool                      `json:"force_addition"`
	Products      []ReservationProductInput `json:"products"`
	Payments      []PaymentInput            `json:"payments"     validate:"dive"`
}

type SaleFilter struct {
	ID          *int64   `form:"id"`
	ClientName  string   `form:"client_name"`
	Status      string   `form:"status"`
	CreatedFrom string   `form:"created_from"`
	CreatedTo   string   `form:"created_to"`
	TotalMin    *float64 `form:"total_min"`
	TotalMax    *float64 `form:"total_max"`
	OrderBy     string   `form:"order_by"`
	OrderByAsc  bool     `form:"order_by_asc"`
	Limit       int      `form:"limit,default=50" validate:"min=0,max=500"`
	Offset      int      `form:"offset"           validate:"min=0"`
	Format      string   `form:"format"           validate:"omitempty,oneof=json pdf"`
}

type PaymentResponse struct {
	PaymentMethodInstallmentID int64           `json:"payment_method_installment_id"`
	PaymentMethodName          string          `json:"payment_method_name"`
	Installments               int             `json:"installments"`
	Value                      decimal.Decimal `json:"value"`
}

type SaleResponse struct {
	ID         int64             `json:"id"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	Client     ClientSnapshot    `json:"client"`
	Employee   EmployeeRef       `json:"employee"`
	Discount   decimal.Decimal   `json:"discount"`
	TotalValue decimal.Decimal   `json:"total_value"`
	Lines      []LineResponse    `json:"lines"`
	Payments   []PaymentResponse `json:"payments"`
	// PaymentSummary joins the payments as "Pix 1x 10.00, ..." for receipts.
	PaymentSummary string `json:"payment_summary"`
}

type SaleListItem struct {
	ID             int64           `json:"id"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	ClientName     string          `json:"client_name"`
	EmployeeName   string          `json:"employee_name"`
	TotalValue     decimal.Decimal `json:"total_value"`
	PaymentSummary string          `json:"payment_summary"`
}

type SaleListResponse struct {
	Count int64          `json:"count"`
	Sales []SaleListItem `json:"sales"`
}

type PaymentMethodResponse struct {
	PaymentMethodInstallmentID int64  `json:"payment_method_installment_id"`
	PaymentMethodID            int64  `json:"payment_method_id"`
	PaymentMethodName          string `json:"payment_method_name"`
	Installments               int    `json:"installments"`
}
