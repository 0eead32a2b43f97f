package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/cache"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlWorld runs the services over the real repositories on an in-memory
// SQLite database, so every runTx really commits or rolls back.
type sqlWorld struct {
	db           *gorm.DB
	products     repository.ProductRepository
	movements    repository.StockMovementRepository
	catalog      service.CatalogService
	conditionals service.ConditionalService
	sales        service.SaleService

	clientID   int64
	employeeID int64
}

// sqlOption swaps a repository before the services are built.
type sqlOption func(w *sqlWorld)

func newSQLWorld(t *testing.T, opts ...sqlOption) *sqlWorld {
	t.Helper()
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,

		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Employee{}, &model.Client{}, &model.AuthToken{},
		&model.ClientContact{}, &model.ClientChild{},
		&model.ProductSize{}, &model.ProductColor{}, &model.ProductOther{},
		&model.ProductCollection{}, &model.ProductType{},
		&model.Product{}, &model.CustomizedProduct{},
		&model.ProductHasCollection{}, &model.ProductHasType{},
		&model.Conditional{}, &model.ConditionalLine{},
		&model.PaymentMethod{}, &model.PaymentMethodInstallment{},
		&model.Sale{}, &model.SaleLine{}, &model.SalePayment{},
		&model.StockMovement{}, &model.EventName{}, &model.Event{},
	))

	require.NoError(t, db.Create(&model.ProductSize{ID: 1, Name: "P"}).Error)
	require.NoError(t, db.Create(&model.PaymentMethod{ID: 1, Name: "Pix"}).Error)
	require.NoError(t, db.Create(&model.PaymentMethodInstallment{ID: 1, PaymentMethodID: 1, Installments: 1}).Error)
	for _, n := range eventNames {
		require.NoError(t, db.Create(&model.EventName{Name: n}).Error)
	}

	w := &sqlWorld{
		db:        db,
		products:  repository.NewProductRepository(db),
		movements: repository.NewStockMovementRepository(db),
	}
	for _, opt := range opts {
		opt(w)
	}

	users := repository.NewUserRepository(db)
	clients := repository.NewClientRepository(db)
	u := &model.User{Name: "Ana", Mail: "ana@example.com", PasswordHash: "x", Type: model.UserTypeEmployee, EntryAllowed: true}
	require.NoError(t, users.CreateTx(db, u))
	require.NoError(t, users.CreateEmployeeTx(db, &model.Employee{ID: u.ID, Active: true, Commission: decimal.RequireFromString("0.1")}))
	c := &model.Client{Name: "Maria"}
	require.NoError(t, clients.CreateTx(db, c))
	w.clientID, w.employeeID = c.ID, u.ID

	store := cache.NewMemoryStore()
	refs := service.NewReferenceData(store, repository.NewLookupRepository(db), time.Hour)
	// The single connection is held by an open transaction, so the event
	// names recorded inside it must already be cached.
	_, err = refs.EventID(ctx, service.EventLogin)
	require.NoError(t, err)

	events := service.NewEventService(repository.NewEventRepository(db), refs)
	engine := service.NewReservationEngine(w.products, clients, users, w.movements, store)
	w.catalog = service.NewCatalogService(w.products, w.movements, events, refs, store)
	w.conditionals = service.NewConditionalService(repository.NewConditionalRepository(db), engine, events)
	w.sales = service.NewSaleService(repository.NewSaleRepository(db), engine, events, refs, true)
	return w
}

func (w *sqlWorld) seedVariant(t *testing.T, code string, price string, qty int) (productID, variantID int64) {
	t.Helper()
	p := &model.Product{Code: code, Name: "Produto " + code, IsActive: true}
	require.NoError(t, w.products.CreateTx(w.db, p))
	v := &model.CustomizedProduct{ProductID: p.ID, SizeID: 1, Price: decimal.RequireFromString(price), Quantity: qty, IsActive: true}
	require.NoError(t, w.products.CreateVariantTx(w.db, v))
	return p.ID, v.ID
}

func (w *sqlWorld) variant(t *testing.T, id int64) model.CustomizedProduct {
	t.Helper()
	var v model.CustomizedProduct
	require.NoError(t, w.db.First(&v, id).Error)
	return v
}

func (w *sqlWorld) product(t *testing.T, id int64) model.Product {
	t.Helper()
	var p model.Product
	require.NoError(t, w.db.First(&p, id).Error)
	return p
}

func (w *sqlWorld) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, w.db.Model(m).Count(&n).Error)
	return n
}

func (w *sqlWorld) saleReq(total string, products []dto.ReservationProductInput) dto.CreateSaleRequest {
	return dto.CreateSaleRequest{
		ClientID:   w.clientID,
		EmployeeID: w.employeeID,
		Discount:   dec("0"),
		TotalValue: dec(total),
		Products:   products,
		Payments:   []dto.PaymentInput{pay(1, total)},
	}
}

func (w *sqlWorld) conditionalReq(products ...dto.ReservationProductInput) dto.CreateConditionalRequest {
	return dto.CreateConditionalRequest{ClientID: w.clientID, EmployeeID: w.employeeID, Products: products}
}

// racingProductRepo empties one variant right before it is reserved, as an
// order committing first on another connection would.
type racingProductRepo struct {
	repository.ProductRepository
	drain int64
}

func (r *racingProductRepo) ReserveVariantTx(tx *gorm.DB, id int64, qty int, force bool) (int, error) {
	if id == r.drain {
		if err := tx.Model(&model.CustomizedProduct{}).Where("id = ?", id).Update("quantity", 0).Error; err != nil {
			return 0, err
		}
	}
	return r.ProductRepository.ReserveVariantTx(tx, id, qty, force)
}

// brokenLedgerRepo fails the ledger insert numbered failAt, counting from the
// moment it is armed.
type brokenLedgerRepo struct {
	repository.StockMovementRepository
	failAt int
	seen   int
}

func (r *brokenLedgerRepo) CreateTx(tx *gorm.DB, m *model.StockMovement) error {
	if r.failAt > 0 {
		r.seen++
		if r.seen == r.failAt {
			return errors.New("disk I/O error")
		}
	}
	return r.StockMovementRepository.CreateTx(tx, m)
}

func TestSQLite_GetByCodeFollowsCommittedStock(t *testing.T) {
	w := newSQLWorld(t)
	ctx := context.Background()
	pid, vid := w.seedVariant(t, "B01", "10.00", 5)

	quantity := func() (int, bool) {
		got, err := w.catalog.GetByCode(ctx, "B01")
		require.NoError(t, err)
		require.Len(t, got.Variants, 1)
		return got.Variants[0].Quantity, got.IsImmutable
	}
	q, immutable := quantity()
	assert.Equal(t, 5, q)
	assert.False(t, immutable)

	saleID, err := w.sales.Create(ctx, w.employeeID, w.saleReq("30.00", []dto.ReservationProductInput{line(pid, vid, 3)}))
	require.NoError(t, err)
	q, immutable = quantity()
	assert.Equal(t, 2, q)
	assert.True(t, immutable)

	require.NoError(t, w.sales.Cancel(ctx, w.employeeID, saleID))
	q, _ = quantity()
	assert.Equal(t, 5, q)

	condID, err := w.conditionals.Create(ctx, w.employeeID, w.conditionalReq(line(pid, vid, 4)))
	require.NoError(t, err)
	q, _ = quantity()
	assert.Equal(t, 1, q)

	require.NoError(t, w.conditionals.PatchStatus(ctx, w.employeeID, condID, model.ConditionalReturned))
	q, immutable = quantity()
	assert.Equal(t, 5, q)
	assert.True(t, immutable)
	assert.Equal(t, 5, w.variant(t, vid).Quantity)
}

func TestSQLite_SaleRollsBackWhenLaterLineLosesStock(t *testing.T) {
	racing := &racingProductRepo{}
	w := newSQLWorld(t, func(w *sqlWorld) {
		racing.ProductRepository = w.products
		w.products = racing
	})
	ctx := context.Background()
	pidA, vidA := w.seedVariant(t, "A01", "10.00", 5)
	pidB, vidB := w.seedVariant(t, "B01", "10.00", 3)
	racing.drain = vidB

	_, err := w.sales.Create(ctx, w.employeeID, w.saleReq("30.00",
		[]dto.ReservationProductInput{line(pidA, vidA, 2), line(pidB, vidB, 1)}))
	require.Error(t, err)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))

	a, b := w.variant(t, vidA), w.variant(t, vidB)
	assert.Equal(t, 5, a.Quantity)
	assert.False(t, a.IsImmutable)
	assert.Equal(t, 3, b.Quantity)
	assert.False(t, b.IsImmutable)
	assert.False(t, w.product(t, pidA).IsImmutable)
	assert.False(t, w.product(t, pidB).IsImmutable)

	assert.Zero(t, w.count(t, &model.Sale{}))
	assert.Zero(t, w.count(t, &model.SaleLine{}))
	assert.Zero(t, w.count(t, &model.SalePayment{}))
	assert.Zero(t, w.count(t, &model.StockMovement{}))
	assert.Zero(t, w.count(t, &model.Event{}))
}

func TestSQLite_ConditionalRollsBackWhenLedgerWriteFails(t *testing.T) {
	ledger := &brokenLedgerRepo{}
	w := newSQLWorld(t, func(w *sqlWorld) {
		ledger.StockMovementRepository = w.movements
		w.movements = ledger
	})
	ctx := context.Background()
	pidA, vidA := w.seedVariant(t, "A01", "10.00", 5)
	pidB, vidB := w.seedVariant(t, "B01", "10.00", 3)

	ledger.failAt = 2
	_, err := w.conditionals.Create(ctx, w.employeeID, w.conditionalReq(line(pidA, vidA, 2), line(pidB, vidB, 1)))
	require.Error(t, err)
	assert.Equal(t, apierror.KindTransaction, apierror.KindOf(err))

	assert.Equal(t, 5, w.variant(t, vidA).Quantity)
	assert.False(t, w.variant(t, vidA).IsImmutable)
	assert.Equal(t, 3, w.variant(t, vidB).Quantity)
	assert.False(t, w.product(t, pidA).IsImmutable)
	assert.Zero(t, w.count(t, &model.Conditional{}))
	assert.Zero(t, w.count(t, &model.ConditionalLine{}))
	assert.Zero(t, w.count(t, &model.StockMovement{}))
	assert.Zero(t, w.count(t, &model.Event{}))
}

func TestSQLite_ConditionalReturnRollsBackWhenLedgerWriteFails(t *testing.T) {
	ledger := &brokenLedgerRepo{}
	w := newSQLWorld(t, func(w *sqlWorld) {
		ledger.StockMovementRepository = w.movements
		w.movements = ledger
	})
	ctx := context.Background()
	pidA, vidA := w.seedVariant(t, "A01", "10.00", 5)
	pidB, vidB := w.seedVariant(t, "B01", "10.00", 3)

	id, err := w.conditionals.Create(ctx, w.employeeID, w.conditionalReq(line(pidA, vidA, 2), line(pidB, vidB, 1)))
	require.NoError(t, err)

	ledger.failAt = 2
	err = w.conditionals.PatchStatus(ctx, w.employeeID, id, model.ConditionalReturned)
	require.Error(t, err)
	assert.Equal(t, apierror.KindTransaction, apierror.KindOf(err))

	var c model.Conditional
	require.NoError(t, w.db.First(&c, id).Error)
	assert.Equal(t, model.ConditionalPending, c.Status)
	assert.Equal(t, 3, w.variant(t, vidA).Quantity)
	assert.Equal(t, 2, w.variant(t, vidB).Quantity)
	assert.Equal(t, int64(2), w.count(t, &model.StockMovement{}))
	assert.Equal(t, int64(1), w.count(t, &model.Event{}))
}
