package repository

import (
	"context"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClientCriteria filters clients. The Child* fields match clients having at
// least one child that satisfies all of them.
type ClientCriteria struct {
	Name          string
	CPF           string
	ChildName     string
	ChildBornFrom *time.Time
	ChildBornTo   *time.Time
	Limit         int
	Offset        int
}

type ClientRepository interface {
	CreateTx(tx *gorm.DB, c *model.Client) error
	FindByID(ctx context.Context, id int64) (*model.Client, error)
	UpdateTx(tx *gorm.DB, c *model.Client) error
	// CPFTaken reports whether another client already uses cpf.
	CPFTaken(ctx context.Context, cpf string, excludeID int64) (bool, error)
	// NameTaken compares names case-insensitively.
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	ReplaceContactsTx(tx *gorm.DB, clientID int64, contacts []model.ClientContact) error
	ReplaceChildrenTx(tx *gorm.DB, clientID int64, children []model.ClientChild) error
	List(ctx context.Context, c ClientCriteria) ([]model.Client, int64, error)
	DB() *gorm.DB
}

type clientRepo struct{ db *gorm.DB }

func NewClientRepository(db *gorm.DB) ClientRepository { return &clientRepo{db: db} }

func (r *clientRepo) DB() *gorm.DB { return r.db }

// CreateTx stores the client row only; contacts and children go through the
// Replace methods.
func (r *clientRepo) CreateTx(tx *gorm.DB, c *model.Client) error {
	return tx.Omit(clause.Associations).Create(c).Error
}

func (r *clientRepo) FindByID(ctx context.Context, id int64) (*model.Client, error) {
	var c model.Client
	if err := withDetails(r.db.WithContext(ctx)).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) UpdateTx(tx *gorm.DB, c *model.Client) error {
	return tx.Omit(clause.Associations).Save(c).Error
}

func (r *clientRepo) ReplaceContactsTx(tx *gorm.DB, clientID int64, contacts []model.ClientContact) error {
	if err := tx.Where("client_id = ?", clientID).Delete(&model.ClientContact{}).Error; err != nil {
		return err
	}
	if len(contacts) == 0 {
		return nil
	}
	for i := range contacts {
		contacts[i].ID, contacts[i].ClientID = 0, clientID
	}
	return tx.Create(&contacts).Error
}

func (r *clientRepo) ReplaceChildrenTx(tx *gorm.DB, clientID int64, children []model.ClientChild) error {
	if err := tx.Where("client_id = ?", clientID).Delete(&model.ClientChild{}).Error; err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}
	for i := range children {
		children[i].ID, children[i].ClientID = 0, clientID
	}
	return tx.Omit("Size").Create(&children).Error
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Contacts", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Children", func(db *gorm.DB) *gorm.DB { return db.Order("birth_date").Order("id") }).
		Preload("Children.Size")
}

func (r *clientRepo) CPFTaken(ctx context.Context, cpf string, excludeID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Client{}).
		Where("cpf = ? AND id <> ?", cpf, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *clientRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Client{}).
		Where("LOWER(name) = LOWER(?) AND id <> ?", name, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *clientRepo) List(ctx context.Context, c ClientCriteria) ([]model.Client, int64, error) {
	q := querybuilder.New().
		Where("name", querybuilder.Contains, c.Name).
		Where("cpf", querybuilder.Contains, c.CPF)
	children := querybuilder.New().
		Where("name", querybuilder.Contains, c.ChildName).
		Where("birth_date", querybuilder.Gte, c.ChildBornFrom).
		Where("birth_date", querybuilder.Lte, c.ChildBornTo)

	base := func() *gorm.DB {
		db := r.db.WithContext(ctx).Model(&model.Client{})
		if len(children.Conditions()) > 0 {
			db = db.Where("id IN (?)", children.CountScope(r.db.Model(&model.ClientChild{}).Select("client_id")))
		}
		return db
	}

	var total int64
	if err := q.CountScope(base()).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var clients []model.Client
	err := q.OrderBy("name", true).Page(c.Limit, c.Offset).
		Scope(withDetails(base())).
		Find(&clients).Error
	return clients, total, err
}
