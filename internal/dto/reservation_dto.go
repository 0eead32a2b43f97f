package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationVariantInput asks for a quantity of one variant. Both fields are
// pointers: absence is a business-rule rejection with its own message.
type ReservationVariantInput struct {
	CustomizedProductID *int64 `json:"customized_product_id"`
	Quantity            *int   `json:"quantity"`
}

type ReservationProductInput struct {
	ProductID int64                     `json:"product_id"`
	Variants  []ReservationVariantInput `json:"variants"`
}

// ClientSnapshot is the client data copied into receipts.
type ClientSnapshot struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	CPF          *string `json:"cpf"`
	Mail         *string `json:"mail"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	Number       *string `json:"number"`
	Neighborhood *string `json:"neighborhood"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	CEP          *string `json:"cep"`
}

type EmployeeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LineResponse is a conditional or sale line joined with its product and variant.
type LineResponse struct {
	ProductID           int64           `json:"product_id"`
	ProductCode         string          `json:"product_code"`
	ProductName         string          `json:"product_name"`
	CustomizedProductID int64           `json:"customized_product_id"`
	ColorName           *string         `json:"color_name"`
	OtherName           *string         `json:"other_name"`
	SizeName            string          `json:"size_name"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Quantity            int             `json:"quantity"`
	Subtotal            decimal.Decimal `json:"subtotal"`
}

// DateLayout is the accepted format for created_from / created_to filters.
const DateLayout = "2006-01-02T15:04"

// ParseDate parses an optional filter date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
