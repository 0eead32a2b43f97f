package repository

import (
	"context"
	"sort"

	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/querybuilder"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductCriteria is the parsed product list filter.
type ProductCriteria struct {
	Code         string
	Name         string
	ColorID      *int64
	OtherID      *int64
	SizeID       *int64
	CollectionID *int64
	TypeID       *int64
	QuantityMin  *int
	QuantityMax  *int
	PriceMin     *float64
	PriceMax     *float64
	OrderBy      string // resolved column
	OrderAsc     bool
	Limit        int
	Offset       int
}

// ProductOrderColumns whitelists the sort keys accepted by List.
var ProductOrderColumns = map[string]string{
	"id":         "p.id",
	"code":       "p.code",
	"name":       "p.name",
	"created_at": "p.created_at",
}

// ProductRepository owns products, their variants and their collection/type links.
// Methods ending in Tx must run inside the caller's transaction.
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	FindByIDTx(tx *gorm.DB, id int64) (*model.Product, error)
	FindActiveByCode(ctx context.Context, code string) (*model.Product, error)
	ActiveCodeTaken(ctx context.Context, code string, excludeID int64) (bool, error)
	ActiveNameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	LinkIDs(ctx context.Context, productID int64) (collectionIDs, typeIDs []int64, err error)
	List(ctx context.Context, c ProductCriteria) ([]model.Product, int64, error)
	ListActiveSummaries(ctx context.Context) ([]model.Product, error)

	CreateTx(tx *gorm.DB, p *model.Product) error
	UpdateTx(tx *gorm.DB, p *model.Product) error
	DeactivateTx(tx *gorm.DB, id int64) error
	DeleteTx(tx *gorm.DB, id int64) error
	MarkImmutableTx(tx *gorm.DB, id int64) error
	AddLinksTx(tx *gorm.DB, productID int64, collectionIDs, typeIDs []int64) error
	RemoveLinksTx(tx *gorm.DB, productID int64, collectionIDs, typeIDs []int64) error
	DeleteAllLinksTx(tx *gorm.DB, productID int64) error

	CreateVariantTx(tx *gorm.DB, v *model.CustomizedProduct) error
	// UpdateVariantTx sets price and quantity and reactivates the variant,
	// provided its quantity still equals expected. Otherwise ErrStockChanged.
	UpdateVariantTx(tx *gorm.DB, id int64, price decimal.Decimal, quantity, expected int) error
	DeactivateVariantTx(tx *gorm.DB, id int64) error
	DeleteVariantTx(tx *gorm.DB, id int64) error
	// ReserveVariantTx subtracts qty with a floor at zero and marks the variant
	// immutable in one statement. Unless force is set the update only applies
	// while quantity >= qty; otherwise ErrStockChanged is returned.
	ReserveVariantTx(tx *gorm.DB, id int64, qty int, force bool) (quantityAfter int, err error)
	RestituteVariantTx(tx *gorm.DB, id int64, qty int) (quantityAfter int, err error)

	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *productRepo) FindByIDTx(tx *gorm.DB, id int64) (*model.Product, error) {
	var p model.Product
	err := tx.Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) FindActiveByCode(ctx context.Context, code string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("size_id, color_id, other_id")
		}).
		Preload("Variants.Color").Preload("Variants.Other").Preload("Variants.Size").
		Where("code = ? AND is_active = ?", code, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ActiveCodeTaken(ctx context.Context, code string, excludeID int64) (bool, error) {
	return r.activeTaken(ctx, "code", code, excludeID)
}

func (r *productRepo) ActiveNameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	return r.activeTaken(ctx, "name", name, excludeID)
}

func (r *productRepo) activeTaken(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where(column+" = ? AND is_active = ? AND id <> ?", value, true, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *productRepo) LinkIDs(ctx context.Context, productID int64) ([]int64, []int64, error) {
	var collections, types []int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.ProductHasCollection{}).Where("product_id = ?", productID).
		Order("collection_id").Pluck("collection_id", &collections).Error; err != nil {
		return nil, nil, err
	}
	if err := db.Model(&model.ProductHasType{}).Where("product_id = ?", productID).
		Order("type_id").Pluck("type_id", &types).Error; err != nil {
		return nil, nil, err
	}
	return collections, types, nil
}

func (r *productRepo) List(ctx context.Context, c ProductCriteria) ([]model.Product, int64, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Table("products p").
			Joins("JOIN customized_products cp ON cp.product_id = p.id AND cp.is_active = ?", true).
			Joins("LEFT JOIN product_has_collections phc ON phc.product_id = p.id").
			Joins("LEFT JOIN product_has_types pht ON pht.product_id = p.id").
			Where("p.is_active = ?", true)
	}
	q := querybuilder.New().
		Where("p.code", querybuilder.Contains, c.Code).
		Where("p.name", querybuilder.Contains, c.Name).
		Where("cp.color_id", querybuilder.Eq, c.ColorID).
		Where("cp.other_id", querybuilder.Eq, c.OtherID).
		Where("cp.size_id", querybuilder.Eq, c.SizeID).
		Where("phc.collection_id", querybuilder.Eq, c.CollectionID).
		Where("pht.type_id", querybuilder.Eq, c.TypeID).
		Where("cp.quantity", querybuilder.Gte, c.QuantityMin).
		Where("cp.quantity", querybuilder.Lte, c.QuantityMax).
		Where("cp.price", querybuilder.Gte, c.PriceMin).
		Where("cp.price", querybuilder.Lte, c.PriceMax).
		GroupBy("p.id")

	var total int64
	countSub := q.CountScope(base().Select("p.id"))
	if err := r.db.WithContext(ctx).Table("(?) AS matched", countSub).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Product{}, 0, nil
	}

	orderBy := c.OrderBy
	if orderBy == "" {
		orderBy = "p.id"
	}
	var ids []int64
	if err := q.OrderBy(orderBy, c.OrderAsc).Page(c.Limit, c.Offset).
		Scope(base()).Pluck("p.id", &ids).Error; err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []model.Product{}, total, nil
	}

	var products []model.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("size_id, color_id, other_id")
		}).
		Preload("Variants.Color").Preload("Variants.Other").Preload("Variants.Size").
		Where("id IN ?", ids).Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	pos := make(map[int64]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	sort.Slice(products, func(i, j int) bool { return pos[products[i].ID] < pos[products[j].ID] })
	return products, total, nil
}

func (r *productRepo) ListActiveSummaries(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Select("id", "code", "name").
		Where("is_active = ?", true).Order("name").Find(&products).Error
	return products, err
}

func (r *productRepo) CreateTx(tx *gorm.DB, p *model.Product) error {
	return tx.Omit("Variants").Create(p).Error
}

func (r *productRepo) UpdateTx(tx *gorm.DB, p *model.Product) error {
	return tx.Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"code":         p.Code,
		"name":         p.Name,
		"observations": p.Observations,
	}).Error
}

func (r *productRepo) DeactivateTx(tx *gorm.DB, id int64) error {
	return tx.Model(&model.Product{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *productRepo) DeleteTx(tx *gorm.DB, id int64) error {
	return tx.Delete(&model.Product{}, id).Error
}

func (r *productRepo) MarkImmutableTx(tx *gorm.DB, id int64) error {
	res := tx.Model(&model.Product{}).Where("id = ?", id).Update("is_immutable", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) AddLinksTx(tx *gorm.DB, productID int64, collectionIDs, typeIDs []int64) error {
	if len(collectionIDs) > 0 {
		rows := make([]model.ProductHasCollection, len(collectionIDs))
		for i, id := range collectionIDs {
			rows[i] = model.ProductHasCollection{ProductID: productID, CollectionID: id}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(typeIDs) > 0 {
		rows := make([]model.ProductHasType, len(typeIDs))
		for i, id := range typeIDs {
			rows[i] = model.ProductHasType{ProductID: productID, TypeID: id}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *productRepo) RemoveLinksTx(tx *gorm.DB, productID int64, collectionIDs, typeIDs []int64) error {
	if len(collectionIDs) > 0 {
		if err := tx.Where("product_id = ? AND collection_id IN ?", productID, collectionIDs).
			Delete(&model.ProductHasCollection{}).Error; err != nil {
			return err
		}
	}
	if len(typeIDs) > 0 {
		if err := tx.Where("product_id = ? AND type_id IN ?", productID, typeIDs).
			Delete(&model.ProductHasType{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *productRepo) DeleteAllLinksTx(tx *gorm.DB, productID int64) error {
	if err := tx.Where("product_id = ?", productID).Delete(&model.ProductHasCollection{}).Error; err != nil {
		return err
	}
	return tx.Where("product_id = ?", productID).Delete(&model.ProductHasType{}).Error
}

func (r *productRepo) CreateVariantTx(tx *gorm.DB, v *model.CustomizedProduct) error {
	return tx.Omit("Color", "Other", "Size").Create(v).Error
}

func (r *productRepo) UpdateVariantTx(tx *gorm.DB, id int64, price decimal.Decimal, quantity, expected int) error {
	res := tx.Model(&model.CustomizedProduct{}).
		Where("id = ? AND quantity = ?", id, expected).
		Updates(map[string]interface{}{
			"price":     price,
			"quantity":  quantity,
			"is_active": true,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockChanged
	}
	return nil
}

func (r *productRepo) DeactivateVariantTx(tx *gorm.DB, id int64) error {
	return tx.Model(&model.CustomizedProduct{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *productRepo) DeleteVariantTx(tx *gorm.DB, id int64) error {
	res := tx.Where("id = ? AND is_immutable = ?", id, false).Delete(&model.CustomizedProduct{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) ReserveVariantTx(tx *gorm.DB, id int64, qty int, force bool) (int, error) {
	q := tx.Model(&model.CustomizedProduct{}).Where("id = ?", id)
	if !force {
		q = q.Where("quantity >= ?", qty)
	}
	res := q.Updates(map[string]interface{}{
		"quantity":     gorm.Expr("CASE WHEN quantity > ? THEN quantity - ? ELSE 0 END", qty, qty),
		"is_immutable": true,
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrStockChanged
	}
	return r.quantityTx(tx, id)
}

func (r *productRepo) RestituteVariantTx(tx *gorm.DB, id int64, qty int) (int, error) {
	res := tx.Model(&model.CustomizedProduct{}).Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return r.quantityTx(tx, id)
}

func (r *productRepo) quantityTx(tx *gorm.DB, id int64) (int, error) {
	var q int
	err := tx.Raw("SELECT quantity FROM customized_products WHERE id = ?", id).Scan(&q).Error
	return q, err
}
