package repository

import (
	"context"

	"github.com/VCalixtoR/gestaomt-back/internal/model"

	"gorm.io/gorm"
)

// LookupRepository reads the reference tables. Results are cached by the
// service layer, so every call here is a full table read.
type LookupRepository interface {
	Sizes(ctx context.Context) ([]model.ProductSize, error)
	Colors(ctx context.Context) ([]model.ProductColor, error)
	Others(ctx context.Context) ([]model.ProductOther, error)
	Collections(ctx context.Context) ([]model.ProductCollection, error)
	Types(ctx context.Context) ([]model.ProductType, error)
	PaymentInstallments(ctx context.Context) ([]model.PaymentMethodInstallment, error)
	EventNames(ctx context.Context) ([]model.EventName, error)
}

type lookupRepo struct{ db *gorm.DB }

func NewLookupRepository(db *gorm.DB) LookupRepository { return &lookupRepo{db: db} }

func (r *lookupRepo) Sizes(ctx context.Context) ([]model.ProductSize, error) {
	var out []model.ProductSize
	err := r.db.WithContext(ctx).Order("position, id").Find(&out).Error
	return out, err
}

func (r *lookupRepo) Colors(ctx context.Context) ([]model.ProductColor, error) {
	var out []model.ProductColor
	err := r.db.WithContext(ctx).Order("position, id").Find(&out).Error
	return out, err
}

func (r *lookupRepo) Others(ctx context.Context) ([]model.ProductOther, error) {
	var out []model.ProductOther
	err := r.db.WithContext(ctx).Order("position, id").Find(&out).Error
	return out, err
}

func (r *lookupRepo) Collections(ctx context.Context) ([]model.ProductCollection, error) {
	var out []model.ProductCollection
	err := r.db.WithContext(ctx).Order("position, id").Find(&out).Error
	return out, err
}

func (r *lookupRepo) Types(ctx context.Context) ([]model.ProductType, error) {
	var out []model.ProductType
	err := r.db.WithContext(ctx).Order("position, id").Find(&out).Error
	return out, err
}

func (r *lookupRepo) PaymentInstallments(ctx context.Context) ([]model.PaymentMethodInstallment, error) {
	var out []model.PaymentMethodInstallment
	err := r.db.WithContext(ctx).Preload("PaymentMethod").
		Order("payment_method_id, installments").Find(&out).Error
	return out, err
}

func (r *lookupRepo) EventNames(ctx context.Context) ([]model.EventName, error) {
	var out []model.EventName
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}
