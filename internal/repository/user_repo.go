package repository

import (
	"context"

	"github.com/VCalixtoR/gestaomt-back/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	CreateTx(tx *gorm.DB, u *model.User) error
	FindByMail(ctx context.Context, mail string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// CPFTaken reports whether any user already registered cpf.
	CPFTaken(ctx context.Context, cpf string) (bool, error)
	// ListUsers returns users by name. pendingOnly keeps the registrations
	// still waiting for approval.
	ListUsers(ctx context.Context, pendingOnly bool) ([]model.User, error)
	UpdateEntryAllowedTx(tx *gorm.DB, id int64, allowed bool) error
	DeleteTx(tx *gorm.DB, id int64) error

	CreateEmployeeTx(tx *gorm.DB, e *model.Employee) error
	// FindEmployee loads the employee together with its user row.
	FindEmployee(ctx context.Context, id int64) (*model.Employee, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	UpdateEmployeeTx(tx *gorm.DB, id int64, fields map[string]any) error
	DB() *gorm.DB
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) DB() *gorm.DB { return r.db }

func (r *userRepo) CreateTx(tx *gorm.DB, u *model.User) error {
	return tx.Create(u).Error
}

func (r *userRepo) FindByMail(ctx context.Context, mail string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(mail) = LOWER(?)", mail).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) CPFTaken(ctx context.Context, cpf string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("cpf = ?", cpf).Count(&n).Error
	return n > 0, err
}

func (r *userRepo) ListUsers(ctx context.Context, pendingOnly bool) ([]model.User, error) {
	q := r.db.WithContext(ctx).Model(&model.User{})
	if pendingOnly {
		q = q.Where("entry_allowed = ? AND type = ?", false, model.UserTypeEmployee).
			Where("NOT EXISTS (SELECT 1 FROM employees e WHERE e.id = users.id)")
	}
	var out []model.User
	err := q.Order("name").Order("id").Find(&out).Error
	return out, err
}

func (r *userRepo) DeleteTx(tx *gorm.DB, id int64) error {
	res := tx.Delete(&model.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) UpdateEntryAllowedTx(tx *gorm.DB, id int64, allowed bool) error {
	return tx.Model(&model.User{}).Where("id = ?", id).Update("entry_allowed", allowed).Error
}

func (r *userRepo) CreateEmployeeTx(tx *gorm.DB, e *model.Employee) error {
	// Select("*") keeps a false Active from falling back to the column default.
	return tx.Select("*").Omit("User").Create(e).Error
}

func (r *userRepo) FindEmployee(ctx context.Context, id int64) (*model.Employee, error) {
	var e model.Employee
	if err := r.db.WithContext(ctx).Preload("User").First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *userRepo) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	var out []model.Employee
	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = employees.id").
		Preload("User").
		Order("users.name").
		Find(&out).Error
	return out, err
}

func (r *userRepo) UpdateEmployeeTx(tx *gorm.DB, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := tx.Model(&model.Employee{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
