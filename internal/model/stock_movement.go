package model

import "time"

// Stock movement kinds
const (
	MovementConditionalReserve = "conditional_reserve"
	MovementSaleReserve        = "sale_reserve"
	MovementConditionalReturn  = "conditional_return"
	MovementConditionalCancel  = "conditional_cancel"
	MovementSaleCancel         = "sale_cancel"
	MovementCatalogAdjust      = "catalog_adjust"
)

// StockMovement records every change of a variant's quantity.
type StockMovement struct {
	ID                  int64  `gorm:"primaryKey"`
	CustomizedProductID int64  `gorm:"not null;index"`
	Kind                string `gorm:"type:varchar(30);not null"`
	Delta               int    `gorm:"not null"` // positive = restitution, negative = reservation
	QuantityAfter       int    `gorm:"not null"`
	ReferenceKind       string `gorm:"type:varchar(20)"`
	ReferenceID         *int64
	CreatedAt           time.Time
}

func (StockMovement) TableName() string { return "stock_movements" }
