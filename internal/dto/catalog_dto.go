package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// VariantInput is one (color, other, size) entry. SizeID is a pointer so a
// missing size is reported by the catalog rules, not by JSON binding.
type VariantInput struct {
	ColorID  *int64          `json:"color_id"`
	OtherID  *int64          `json:"other_id"`
	SizeID   *int64          `json:"size_id"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// ProductRequest is shared by create (PUT) and update (PATCH).
type ProductRequest struct {
	Code          string         `json:"code"           validate:"required,max=40"`
	Name          string         `json:"name"           validate:"required,max=120"`
	Observations  *string        `json:"observations"`
	CollectionIDs []int64        `json:"collection_ids"`
	TypeIDs       []int64        `json:"type_ids"`
	Variants      []VariantInput `json:"variants"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Code         string   `form:"code"`
	Name         string   `form:"name"`
	ColorID      *int64   `form:"color_id"`
	OtherID      *int64   `form:"other_id"`
	SizeID       *int64   `form:"size_id"`
	CollectionID *int64   `form:"collection_id"`
	TypeID       *int64   `form:"type_id"`
	QuantityMin  *int     `form:"quantity_min"`
	QuantityMax  *int     `form:"quantity_max"`
	PriceMin     *float64 `form:"price_min"`
	PriceMax     *float64 `form:"price_max"`
	OrderBy      string   `form:"order_by"`
	OrderByAsc   bool     `form:"order_by_asc"`
	Limit        int      `form:"limit,default=50" validate:"min=0,max=500"`
	Offset       int      `form:"offset"           validate:"min=0"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type VariantResponse struct {
	ID          int64           `json:"id"`
	ColorID     *int64          `json:"color_id"`
	ColorName   *string         `json:"color_name"`
	OtherID     *int64          `json:"other_id"`
	OtherName   *string         `json:"other_name"`
	SizeID      int64           `json:"size_id"`
	SizeName    string          `json:"size_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	IsActive    bool            `json:"is_active"`
	IsImmutable bool            `json:"is_immutable"`
}

type ProductResponse struct {
	ID            int64             `json:"id"`
	Code          string            `json:"code"`
	Name          string            `json:"name"`
	Observations  *string           `json:"observations"`
	IsActive      bool              `json:"is_active"`
	IsImmutable   bool              `json:"is_immutable"`
	CollectionIDs []int64           `json:"collection_ids"`
	TypeIDs       []int64           `json:"type_ids"`
	Variants      []VariantResponse `json:"variants"`
}

type ProductListResponse struct {
	Count    int64             `json:"count"`
	Products []ProductResponse `json:"products"`
}

type ProductSummary struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type LookupItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Lookups bundles the reference tables the product form needs.
type Lookups struct {
	Collections []LookupItem `json:"collections"`
	Types       []LookupItem `json:"types"`
	Colors      []LookupItem `json:"colors"`
	Others      []LookupItem `json:"others"`
	Sizes       []LookupItem `json:"sizes"`
}

type ProductInfoResponse struct {
	Products []ProductSummary `json:"products"`
	Lookups
}

type StockMovementResponse struct {
	ID                  int64     `json:"id"`
	CustomizedProductID int64     `json:"customized_product_id"`
	Kind                string    `json:"kind"`
	Delta               int       `json:"delta"`
	QuantityAfter       int       `json:"quantity_after"`
	ReferenceKind       string    `json:"reference_kind,omitempty"`
	ReferenceID         *int64    `json:"reference_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
