package repository

import (
	"context"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleCriteria struct {
	ID          *int64
	EmployeeID  *int64
	ClientName  string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	TotalMin    *float64
	TotalMax    *float64
	OrderBy     string
	OrderAsc    bool
	Limit       int
	Offset      int
}

var SaleOrderColumns = map[string]string{
	"id":          "sales.id",
	"created_at":  "sales.created_at",
	"client_name": "c.name",
	"status":      "sales.status",
	"total_value": "sales.total_value",
}

// PaymentMethodTotal aggregates confirmed sale payments per payment method.
type PaymentMethodTotal struct {
	PaymentMethodID   int64
	PaymentMethodName string
	Sales             int64
	Value             decimal.Decimal
}

type SaleRepository interface {
	// CreateTx inserts the sale with its lines and payments.
	CreateTx(tx *gorm.DB, s *model.Sale) error
	FindByID(ctx context.Context, id int64) (*model.Sale, error)
	FindByIDTx(tx *gorm.DB, id int64) (*model.Sale, error)
	TransitionTx(tx *gorm.DB, id int64, from, to string) error
	List(ctx context.Context, c SaleCriteria) ([]model.Sale, int64, error)
	// TotalsByPaymentMethod lists every payment method, with zeros for
	// methods that had no confirmed sale in the range.
	TotalsByPaymentMethod(ctx context.Context, employeeID int64, from, to *time.Time) ([]PaymentMethodTotal, error)
	DB() *gorm.DB
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Omit("Client", "Employee").Create(s).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id int64) (*model.Sale, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *saleRepo) FindByIDTx(tx *gorm.DB, id int64) (*model.Sale, error) {
	var s model.Sale
	err := tx.
		Preload("Client").
		Preload("Employee.User").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Product").
		Preload("Lines.Variant.Color").
		Preload("Lines.Variant.Other").
		Preload("Lines.Variant.Size").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments.Installment.PaymentMethod").
		First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *saleRepo) TransitionTx(tx *gorm.DB, id int64, from, to string) error {
	res := tx.Model(&model.Sale{}).
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

func (r *saleRepo) List(ctx context.Context, c SaleCriteria) ([]model.Sale, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&model.Sale{}).
			Joins("JOIN clients c ON c.id = sales.client_id")
	}
	q := querybuilder.New().
		Where("sales.id", querybuilder.Eq, c.ID).
		Where("sales.employee_id", querybuilder.Eq, c.EmployeeID).
		Where("c.name", querybuilder.Contains, c.ClientName).
		Where("sales.status", querybuilder.Eq, c.Status).
		Where("sales.created_at", querybuilder.Gte, c.CreatedFrom).
		Where("sales.created_at", querybuilder.Lte, c.CreatedTo).
		Where("sales.total_value", querybuilder.Gte, c.TotalMin).
		Where("sales.total_value", querybuilder.Lte, c.TotalMax)

	var total int64
	if err := q.CountScope(base()).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := c.OrderBy
	if orderBy == "" {
		orderBy = "sales.id"
	}
	var sales []model.Sale
	err := q.OrderBy(orderBy, c.OrderAsc).Page(c.Limit, c.Offset).Scope(base()).
		Preload("Client").
		Preload("Employee.User").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Payments.Installment.PaymentMethod").
		Find(&sales).Error
	return sales, total, err
}

func (r *saleRepo) TotalsByPaymentMethod(ctx context.Context, employeeID int64, from, to *time.Time) ([]PaymentMethodTotal, error) {
	inner, args := querybuilder.New().
		Where("s.employee_id", querybuilder.Eq, employeeID).
		Where("s.status", querybuilder.Eq, model.SaleConfirmed).
		Where("s.created_at", querybuilder.Gte, from).
		Where("s.created_at", querybuilder.Lte, to).
		GroupBy("pmi.payment_method_id").
		Build()

	sql := `SELECT pm.id AS payment_method_id, pm.name AS payment_method_name,
       COALESCE(t.sales, 0) AS sales, COALESCE(t.value, 0) AS value
  FROM payment_methods pm
  LEFT JOIN (
       SELECT pmi.payment_method_id, COUNT(DISTINCT s.id) AS sales, SUM(sp.value) AS value
         FROM sales s
         JOIN sale_payments sp ON sp.sale_id = s.id
         JOIN payment_method_installments pmi ON pmi.id = sp.payment_method_installment_id` +
		inner + `
  ) t ON t.payment_method_id = pm.id
 ORDER BY pm.id`

	var out []PaymentMethodTotal
	err := r.db.WithContext(ctx).Raw(sql, args...).Scan(&out).Error
	return out, err
}
