package repository

import (
	"context"

	"github.com/VCalixtoR/gestaomt-back/internal/model"

	"gorm.io/gorm"
)

type StockMovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.StockMovement) error
	// ListByProduct returns the ledger of every variant the product ever had,
	// newest first.
	ListByProduct(ctx context.Context, productID int64, limit, offset int) ([]model.StockMovement, int64, error)
}

type stockMovementRepo struct{ db *gorm.DB }

func NewStockMovementRepository(db *gorm.DB) StockMovementRepository {
	return &stockMovementRepo{db: db}
}

func (r *stockMovementRepo) CreateTx(tx *gorm.DB, m *model.StockMovement) error {
	return tx.Create(m).Error
}

func (r *stockMovementRepo) ListByProduct(ctx context.Context, productID int64, limit, offset int) ([]model.StockMovement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockMovement{}).
		Where("customized_product_id IN (?)",
			r.db.Model(&model.CustomizedProduct{}).Select("id").Where("product_id = ?", productID))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var out []model.StockMovement
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}
