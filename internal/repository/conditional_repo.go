package repository

import (
	"context"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"

	"gorm.io/gorm"
)

type ConditionalCriteria struct {
	ID          *int64
	ClientName  string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	OrderBy     string
	OrderAsc    bool
	Limit       int
	Offset      int
}

var ConditionalOrderColumns = map[string]string{
	"id":          "cond.id",
	"created_at":  "cond.created_at",
	"client_name": "c.name",
	"status":      "cond.status",
}

// ConditionalRow is one line of the conditional list.
type ConditionalRow struct {
	ID           int64
	Status       string
	CreatedAt    time.Time
	ClientName   string
	EmployeeName string
}

type ConditionalCounts struct {
	Total    int64
	Pending  int64
	Returned int64
	Canceled int64
}

type ConditionalRepository interface {
	// CreateTx inserts the conditional and its lines.
	CreateTx(tx *gorm.DB, c *model.Conditional) error
	FindByID(ctx context.Context, id int64) (*model.Conditional, error)
	FindByIDTx(tx *gorm.DB, id int64) (*model.Conditional, error)
	// TransitionTx moves the status from -> to, or returns ErrStatusChanged.
	TransitionTx(tx *gorm.DB, id int64, from, to string) error
	List(ctx context.Context, c ConditionalCriteria) ([]ConditionalRow, error)
	Counts(ctx context.Context, c ConditionalCriteria) (ConditionalCounts, error)
	DB() *gorm.DB
}

type conditionalRepo struct{ db *gorm.DB }

func NewConditionalRepository(db *gorm.DB) ConditionalRepository { return &conditionalRepo{db: db} }

func (r *conditionalRepo) DB() *gorm.DB { return r.db }

func (r *conditionalRepo) CreateTx(tx *gorm.DB, c *model.Conditional) error {
	return tx.Omit("Client", "Employee").Create(c).Error
}

func (r *conditionalRepo) FindByID(ctx context.Context, id int64) (*model.Conditional, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *conditionalRepo) FindByIDTx(tx *gorm.DB, id int64) (*model.Conditional, error) {
	var c model.Conditional
	err := tx.
		Preload("Client").
		Preload("Employee.User").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").
		Preload("Lines.Variant.Color").
		Preload("Lines.Variant.Other").
		Preload("Lines.Variant.Size").
		First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conditionalRepo) TransitionTx(tx *gorm.DB, id int64, from, to string) error {
	res := tx.Model(&model.Conditional{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *conditionalRepo) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("conditionals cond").
		Joins("JOIN clients c ON c.id = cond.client_id").
		Joins("JOIN users u ON u.id = cond.employee_id")
}

func (r *conditionalRepo) filter(c ConditionalCriteria) *querybuilder.Query {
	return querybuilder.New().
		Where("cond.id", querybuilder.Eq, c.ID).
		Where("c.name", querybuilder.Contains, c.ClientName).
		Where("cond.status", querybuilder.Eq, c.Status).
		Where("cond.created_at", querybuilder.Gte, c.CreatedFrom).
		Where("cond.created_at", querybuilder.Lte, c.CreatedTo)
}

func (r *conditionalRepo) List(ctx context.Context, c ConditionalCriteria) ([]ConditionalRow, error) {
	orderBy := c.OrderBy
	if orderBy == "" {
		orderBy = "cond.id"
	}
	q := r.filter(c).OrderBy(orderBy, c.OrderAsc).Page(c.Limit, c.Offset)

	var rows []ConditionalRow
	err := q.Scope(r.base(ctx)).
		Select("cond.id, cond.status, cond.created_at, c.name AS client_name, u.name AS employee_name").
		Scan(&rows).Error
	return rows, err
}

func (r *conditionalRepo) Counts(ctx context.Context, c ConditionalCriteria) (ConditionalCounts, error) {
	var out ConditionalCounts
	err := r.filter(c).CountScope(r.base(ctx)).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN cond.status = ? THEN 1 ELSE 0 END), 0) AS pending, "+
				"COALESCE(SUM(CASE WHEN cond.status = ? THEN 1 ELSE 0 END), 0) AS returned, "+
				"COALESCE(SUM(CASE WHEN cond.status = ? THEN 1 ELSE 0 END), 0) AS canceled",
			model.ConditionalPending, model.ConditionalReturned, model.ConditionalCanceled,
		).
		Scan(&out).Error
	return out, err
}
