package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Code and Name are unique among active products
// only; IsImmutable flips to true the first time a conditional or sale
// references one of its variants and never flips back.
type Product struct {
	ID           int64  `gorm:"primaryKey"`
	Code         string `gorm:"type:varchar(40);not null;index"`
	Name         string `gorm:"type:varchar(120);not null;index"`
	Observations *string
	IsActive     bool `gorm:"not null;default:true"`
	IsImmutable  bool `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Variants []CustomizedProduct `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string { return "products" }

// CustomizedProduct is a sellable variant of a Product, identified inside its
// product by (color, other, size). Quantity is the available stock count.
// Once immutable, price and identity are frozen; quantity keeps moving.
type CustomizedProduct struct {
	ID          int64           `gorm:"primaryKey"`
	ProductID   int64           `gorm:"not null;index"`
	ColorID     *int64          `gorm:"index"`
	OtherID     *int64          `gorm:"index"`
	SizeID      int64           `gorm:"not null;index"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity    int             `gorm:"not null;default:0"`
	IsActive    bool            `gorm:"not null;default:true"`
	IsImmutable bool            `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Color *ProductColor `gorm:"foreignKey:ColorID"`
	Other *ProductOther `gorm:"foreignKey:OtherID"`
	Size  *ProductSize  `gorm:"foreignKey:SizeID"`
}

func (CustomizedProduct) TableName() string { return "customized_products" }

// VariantTuple is the identity of a variant inside its product. Zero means
// the optional attribute is absent.
type VariantTuple struct {
	ColorID int64
	OtherID int64
	SizeID  int64
}

func NewVariantTuple(colorID, otherID *int64, sizeID int64) VariantTuple {
	t := VariantTuple{SizeID: sizeID}
	if colorID != nil {
		t.ColorID = *colorID
	}
	if otherID != nil {
		t.OtherID = *otherID
	}
	return t
}

func (v *CustomizedProduct) Tuple() VariantTuple {
	return NewVariantTuple(v.ColorID, v.OtherID, v.SizeID)
}

// ProductHasCollection links a product to a collection.
type ProductHasCollection struct {
	ProductID    int64 `gorm:"primaryKey;autoIncrement:false"`
	CollectionID int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (ProductHasCollection) TableName() string { return "product_has_collections" }

// ProductHasType links a product to a type.
type ProductHasType struct {
	ProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	TypeID    int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (ProductHasType) TableName() string { return "product_has_types" }
