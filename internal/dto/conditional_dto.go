package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateConditionalRequest struct {
	ClientID      int64                     `json:"client_id"   validate:"required"`
	EmployeeID    int64                     `json:"employee_id" validate:"required"`
	ForceAddition bool                      `json:"force_addition"`
	Products      []ReservationProductInput `json:"products"`
}

type PatchConditionalRequest struct {
	Status string `json:"status" validate:"required"`
}

type ConditionalFilter struct {
	ID          *int64 `form:"id"`
	ClientName  string `form:"client_name"`
	Status      string `form:"status"`
	CreatedFrom string `form:"created_from"`
	CreatedTo   string `form:"created_to"`
	OrderBy     string `form:"order_by"`
	OrderByAsc  bool   `form:"order_by_asc"`
	Limit       int    `form:"limit,default=50" validate:"min=0,max=500"`
	Offset      int    `form:"offset"           validate:"min=0"`
	Format      string `form:"format"           validate:"omitempty,oneof=json pdf"`
}

type ConditionalResponse struct {
	ID            int64           `json:"id"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	Client        ClientSnapshot  `json:"client"`
	Employee      EmployeeRef     `json:"employee"`
	Lines         []LineResponse  `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

type ConditionalListItem struct {
	ID           int64     `json:"id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	ClientName   string    `json:"client_name"`
	EmployeeName string    `json:"employee_name"`
}

type ConditionalSummary struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Returned int64 `json:"returned"`
	Canceled int64 `json:"canceled"`
}

type ConditionalListResponse struct {
	TotalQuantity int64                 `json:"total_quantity"`
	Conditionals  []ConditionalListItem `json:"conditionals"`
	Summary       ConditionalSummary    `json:"summary"`
}

type CreatedResponse struct {
	ID int64 `json:"id"`
}
