package repository

import (
	"context"

	"github.com/VCalixtoR/gestaomt-back/internal/model"

	"gorm.io/gorm"
)

// AuthTokenRepository keeps at most one active token per user.
type AuthTokenRepository interface {
	// ReplaceTx drops any previous token of the user and stores the new one.
	ReplaceTx(tx *gorm.DB, userID, issuedAt int64) error
	Find(ctx context.Context, userID int64) (*model.AuthToken, error)
	Delete(ctx context.Context, userID int64) error
	DB() *gorm.DB
}

type authTokenRepo struct{ db *gorm.DB }

func NewAuthTokenRepository(db *gorm.DB) AuthTokenRepository { return &authTokenRepo{db: db} }

func (r *authTokenRepo) DB() *gorm.DB { return r.db }

func (r *authTokenRepo) ReplaceTx(tx *gorm.DB, userID, issuedAt int64) error {
	if err := tx.Where("user_id = ?", userID).Delete(&model.AuthToken{}).Error; err != nil {
		return err
	}
	return tx.Create(&model.AuthToken{UserID: userID, IssuedAt: issuedAt}).Error
}

func (r *authTokenRepo) Find(ctx context.Context, userID int64) (*model.AuthToken, error) {
	var t model.AuthToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *authTokenRepo) Delete(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.AuthToken{}).Error
}
