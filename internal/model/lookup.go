package model

// Lookup tables are plain reference data ordered by Position.

type ProductSize struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(40);not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (ProductSize) TableName() string { return "product_sizes" }

type ProductColor struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(40);not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (ProductColor) TableName() string { return "product_colors" }

type ProductOther struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(40);not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (ProductOther) TableName() string { return "product_others" }

type ProductCollection struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(60);not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (ProductCollection) TableName() string { return "product_collections" }

type ProductType struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(60);not null" json:"name"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (ProductType) TableName() string { return "product_types" }
