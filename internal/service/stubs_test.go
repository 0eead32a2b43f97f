package service_test

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/cache"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"
	"github.com/VCalixtoR/gestaomt-back/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory world ───────────────────────────────────────────────────────────

// memDB backs every stub repository. There is no rollback: tests that expect
// a failure assert on state the failing operation never reached.
type memDB struct {
	seq          int64
	products     map[int64]*model.Product
	variants     map[int64]*model.CustomizedProduct
	collections  map[int64][]int64
	types        map[int64][]int64
	clients      map[int64]*model.Client
	users        map[int64]*model.User
	employees    map[int64]*model.Employee
	conditionals map[int64]*model.Conditional
	sales        map[int64]*model.Sale
	movements    []model.StockMovement
	events       []model.Event
	tokens       map[int64]int64
	installments []model.PaymentMethodInstallment
	eventNames   []model.EventName
}

var eventNames = []string{
	service.EventLogin, service.EventProductCreate, service.EventProductUpdate, service.EventProductFork,
	service.EventProductDelete, service.EventConditionalCreate, service.EventConditionalStatus,
	service.EventSaleCreate, service.EventSaleCancel, service.EventClientCreate, service.EventClientUpdate,
	service.EventEmployeeUpdate, service.EventUserApprove, service.EventUserDeny,
}

func newMemDB() *memDB {
	m := &memDB{
		products:     map[int64]*model.Product{},
		variants:     map[int64]*model.CustomizedProduct{},
		collections:  map[int64][]int64{},
		types:        map[int64][]int64{},
		clients:      map[int64]*model.Client{},
		users:        map[int64]*model.User{},
		employees:    map[int64]*model.Employee{},
		conditionals: map[int64]*model.Conditional{},
		sales:        map[int64]*model.Sale{},
		tokens:       map[int64]int64{},
	}
	pix := &model.PaymentMethod{ID: 1, Name: "Pix"}
	card := &model.PaymentMethod{ID: 2, Name: "Cartao de credito"}
	m.installments = []model.PaymentMethodInstallment{
		{ID: 1, PaymentMethodID: 1, Installments: 1, PaymentMethod: pix},
		{ID: 2, PaymentMethodID: 2, Installments: 1, PaymentMethod: card},
		{ID: 3, PaymentMethodID: 2, Installments: 3, PaymentMethod: card},
	}
	for i, n := range eventNames {
		m.eventNames = append(m.eventNames, model.EventName{ID: int64(i + 1), Name: n})
	}
	return m
}

func (m *memDB) nextID() int64 {
	m.seq++
	return m.seq
}

func notFound() error { return gorm.ErrRecordNotFound }

func (m *memDB) variantsOf(productID int64, activeOnly bool) []model.CustomizedProduct {
	var out []model.CustomizedProduct
	for _, v := range m.variants {
		if v.ProductID == productID && (!activeOnly || v.IsActive) {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memDB) productCopy(id int64, activeOnly bool) (*model.Product, bool) {
	p, ok := m.products[id]
	if !ok {
		return nil, false
	}
	cp := *p
	cp.Variants = m.variantsOf(id, activeOnly)
	return &cp, true
}

func (m *memDB) activeProducts() []*model.Product {
	var out []*model.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memDB) eventCount(name string) int {
	var id int64
	for _, n := range m.eventNames {
		if n.Name == name {
			id = n.ID
		}
	}
	count := 0
	for _, e := range m.events {
		if e.EventNameID == id {
			count++
		}
	}
	return count
}

func (m *memDB) movementsOf(variantID int64) []model.StockMovement {
	var out []model.StockMovement
	for _, mv := range m.movements {
		if mv.CustomizedProductID == variantID {
			out = append(out, mv)
		}
	}
	return out
}

// ── Products ──────────────────────────────────────────────────────────────────

type stubProductRepo struct{ m *memDB }

var _ repository.ProductRepository = (*stubProductRepo)(nil)

func (r *stubProductRepo) DB() *gorm.DB { return nil }

func (r *stubProductRepo) FindByID(_ context.Context, id int64) (*model.Product, error) {
	return r.FindByIDTx(nil, id)
}

func (r *stubProductRepo) FindByIDTx(_ *gorm.DB, id int64) (*model.Product, error) {
	p, ok := r.m.productCopy(id, false)
	if !ok {
		return nil, notFound()
	}
	return p, nil
}

func (r *stubProductRepo) FindActiveByCode(_ context.Context, code string) (*model.Product, error) {
	for _, p := range r.m.activeProducts() {
		if p.Code == code {
			cp, _ := r.m.productCopy(p.ID, true)
			return cp, nil
		}
	}
	return nil, notFound()
}

func (r *stubProductRepo) ActiveCodeTaken(_ context.Context, code string, excludeID int64) (bool, error) {
	for _, p := range r.m.activeProducts() {
		if p.Code == code && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubProductRepo) ActiveNameTaken(_ context.Context, name string, excludeID int64) (bool, error) {
	for _, p := range r.m.activeProducts() {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubProductRepo) LinkIDs(_ context.Context, productID int64) ([]int64, []int64, error) {
	return append([]int64(nil), r.m.collections[productID]...), append([]int64(nil), r.m.types[productID]...), nil
}

func (r *stubProductRepo) List(_ context.Context, c repository.ProductCriteria) ([]model.Product, int64, error) {
	var out []model.Product
	for _, p := range r.m.activeProducts() {
		if c.Code != "" && !strings.Contains(p.Code, c.Code) {
			continue
		}
		cp, _ := r.m.productCopy(p.ID, true)
		out = append(out, *cp)
	}
	return out, int64(len(out)), nil
}

func (r *stubProductRepo) ListActiveSummaries(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, p := range r.m.activeProducts() {
		out = append(out, *p)
	}
	return out, nil
}

func (r *stubProductRepo) CreateTx(_ *gorm.DB, p *model.Product) error {
	p.ID = r.m.nextID()
	cp := *p
	cp.Variants = nil
	r.m.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) UpdateTx(_ *gorm.DB, p *model.Product) error {
	cp := *p
	cp.Variants = nil
	r.m.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) DeactivateTx(_ *gorm.DB, id int64) error {
	r.m.products[id].IsActive = false
	return nil
}

func (r *stubProductRepo) DeleteTx(_ *gorm.DB, id int64) error {
	delete(r.m.products, id)
	return nil
}

func (r *stubProductRepo) MarkImmutableTx(_ *gorm.DB, id int64) error {
	r.m.products[id].IsImmutable = true
	return nil
}

func (r *stubProductRepo) AddLinksTx(_ *gorm.DB, productID int64, collectionIDs, typeIDs []int64) error {
	r.m.collections[productID] = append(r.m.collections[productID], collectionIDs...)
	r.m.types[productID] = append(r.m.types[productID], typeIDs...)
	return nil
}

func without(ids, drop []int64) []int64 {
	var out []int64
	for _, id := range ids {
		keep := true
		for _, d := range drop {
			if d == id {
				keep = false
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}

func (r *stubProductRepo) RemoveLinksTx(_ *gorm.DB, productID int64, collectionIDs, typeIDs []int64) error {
	r.m.collections[productID] = without(r.m.collections[productID], collectionIDs)
	r.m.types[productID] = without(r.m.types[productID], typeIDs)
	return nil
}

func (r *stubProductRepo) DeleteAllLinksTx(_ *gorm.DB, productID int64) error {
	delete(r.m.collections, productID)
	delete(r.m.types, productID)
	return nil
}

func (r *stubProductRepo) CreateVariantTx(_ *gorm.DB, v *model.CustomizedProduct) error {
	v.ID = r.m.nextID()
	cp := *v
	r.m.variants[v.ID] = &cp
	return nil
}

func (r *stubProductRepo) UpdateVariantTx(_ *gorm.DB, id int64, price decimal.Decimal, quantity, expected int) error {
	v, ok := r.m.variants[id]
	if !ok || v.Quantity != expected {
		return repository.ErrStockChanged
	}
	v.Price, v.Quantity, v.IsActive = price, quantity, true
	return nil
}

func (r *stubProductRepo) DeactivateVariantTx(_ *gorm.DB, id int64) error {
	r.m.variants[id].IsActive = false
	return nil
}

func (r *stubProductRepo) DeleteVariantTx(_ *gorm.DB, id int64) error {
	if v, ok := r.m.variants[id]; ok && !v.IsImmutable {
		delete(r.m.variants, id)
	}
	return nil
}

func (r *stubProductRepo) ReserveVariantTx(_ *gorm.DB, id int64, qty int, force bool) (int, error) {
	v, ok := r.m.variants[id]
	if !ok || (!force && v.Quantity < qty) {
		return 0, repository.ErrStockChanged
	}
	v.Quantity -= qty
	if v.Quantity < 0 {
		v.Quantity = 0
	}
	v.IsImmutable = true
	return v.Quantity, nil
}

func (r *stubProductRepo) RestituteVariantTx(_ *gorm.DB, id int64, qty int) (int, error) {
	v, ok := r.m.variants[id]
	if !ok {
		return 0, repository.ErrStockChanged
	}
	v.Quantity += qty
	return v.Quantity, nil
}

// ── Movements, events, lookups ────────────────────────────────────────────────

type stubMovementRepo struct{ m *memDB }

var _ repository.StockMovementRepository = (*stubMovementRepo)(nil)

func (r *stubMovementRepo) CreateTx(_ *gorm.DB, mv *model.StockMovement) error {
	mv.ID = r.m.nextID()
	r.m.movements = append(r.m.movements, *mv)
	return nil
}

func (r *stubMovementRepo) ListByProduct(_ context.Context, productID int64, _, _ int) ([]model.StockMovement, int64, error) {
	var out []model.StockMovement
	for i := len(r.m.movements) - 1; i >= 0; i-- {
		mv := r.m.movements[i]
		if v, ok := r.m.variants[mv.CustomizedProductID]; ok && v.ProductID == productID {
			out = append(out, mv)
		}
	}
	return out, int64(len(out)), nil
}

type stubEventRepo struct{ m *memDB }

var _ repository.EventRepository = (*stubEventRepo)(nil)

func (r *stubEventRepo) CreateTx(_ *gorm.DB, e *model.Event) error {
	e.ID = r.m.nextID()
	e.CreatedAt = time.Now()
	r.m.events = append(r.m.events, *e)
	return nil
}

func (r *stubEventRepo) List(_ context.Context, c repository.EventCriteria) ([]model.Event, int64, error) {
	var out []model.Event
	for i := len(r.m.events) - 1; i >= 0; i-- {
		e := r.m.events[i]
		if c.UserID != nil && e.UserID != *c.UserID {
			continue
		}
		if c.EventNameID != nil && e.EventNameID != *c.EventNameID {
			continue
		}
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

type stubLookupRepo struct {
	m     *memDB
	loads int
}

var _ repository.LookupRepository = (*stubLookupRepo)(nil)

func (r *stubLookupRepo) Sizes(context.Context) ([]model.ProductSize, error) {
	r.loads++
	return []model.ProductSize{{ID: 1, Name: "P"}, {ID: 2, Name: "M"}, {ID: 3, Name: "G"}}, nil
}

func (r *stubLookupRepo) Colors(context.Context) ([]model.ProductColor, error) {
	return []model.ProductColor{{ID: 1, Name: "Preto"}, {ID: 2, Name: "Branco"}}, nil
}

func (r *stubLookupRepo) Others(context.Context) ([]model.ProductOther, error) {
	return []model.ProductOther{{ID: 1, Name: "Estampado"}}, nil
}

func (r *stubLookupRepo) Collections(context.Context) ([]model.ProductCollection, error) {
	return []model.ProductCollection{{ID: 1, Name: "Verao"}, {ID: 2, Name: "Inverno"}}, nil
}

func (r *stubLookupRepo) Types(context.Context) ([]model.ProductType, error) {
	return []model.ProductType{{ID: 1, Name: "Blusa"}, {ID: 2, Name: "Calca"}}, nil
}

func (r *stubLookupRepo) PaymentInstallments(context.Context) ([]model.PaymentMethodInstallment, error) {
	return r.m.installments, nil
}

func (r *stubLookupRepo) EventNames(context.Context) ([]model.EventName, error) {
	return r.m.eventNames, nil
}

// ── People ────────────────────────────────────────────────────────────────────

type stubClientRepo struct{ m *memDB }

var _ repository.ClientRepository = (*stubClientRepo)(nil)

func (r *stubClientRepo) DB() *gorm.DB { return nil }

func (r *stubClientRepo) CreateTx(_ *gorm.DB, c *model.Client) error {
	c.ID = r.m.nextID()
	c.CreatedAt = time.Now()
	cp := *c
	r.m.clients[c.ID] = &cp
	return nil
}

func (r *stubClientRepo) FindByID(_ context.Context, id int64) (*model.Client, error) {
	c, ok := r.m.clients[id]
	if !ok {
		return nil, notFound()
	}
	cp := *c
	return &cp, nil
}

func (r *stubClientRepo) UpdateTx(_ *gorm.DB, c *model.Client) error {
	cp := *c
	r.m.clients[c.ID] = &cp
	return nil
}

func (r *stubClientRepo) CPFTaken(_ context.Context, cpf string, excludeID int64) (bool, error) {
	for _, c := range r.m.clients {
		if c.CPF != nil && *c.CPF == cpf && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubClientRepo) NameTaken(_ context.Context, name string, excludeID int64) (bool, error) {
	for _, c := range r.m.clients {
		if strings.EqualFold(c.Name, name) && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubClientRepo) ReplaceContactsTx(_ *gorm.DB, clientID int64, contacts []model.ClientContact) error {
	c, ok := r.m.clients[clientID]
	if !ok {
		return notFound()
	}
	c.Contacts = nil
	for _, ct := range contacts {
		ct.ID, ct.ClientID = r.m.nextID(), clientID
		c.Contacts = append(c.Contacts, ct)
	}
	return nil
}

func (r *stubClientRepo) ReplaceChildrenTx(_ *gorm.DB, clientID int64, children []model.ClientChild) error {
	c, ok := r.m.clients[clientID]
	if !ok {
		return notFound()
	}
	c.Children = nil
	for _, ch := range children {
		ch.ID, ch.ClientID = r.m.nextID(), clientID
		c.Children = append(c.Children, ch)
	}
	return nil
}

func (r *stubClientRepo) List(_ context.Context, c repository.ClientCriteria) ([]model.Client, int64, error) {
	var out []model.Client
	for _, cl := range r.m.clients {
		if c.Name != "" && !strings.Contains(cl.Name, c.Name) {
			continue
		}
		if c.ChildName != "" && !hasChildNamed(cl, c.ChildName) {
			continue
		}
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func hasChildNamed(c *model.Client, part string) bool {
	for _, ch := range c.Children {
		if strings.Contains(strings.ToLower(ch.Name), strings.ToLower(part)) {
			return true
		}
	}
	return false
}

type stubUserRepo struct{ m *memDB }

var _ repository.UserRepository = (*stubUserRepo)(nil)

func (r *stubUserRepo) DB() *gorm.DB { return nil }

func (r *stubUserRepo) CreateTx(_ *gorm.DB, u *model.User) error {
	u.ID = r.m.nextID()
	u.CreatedAt = time.Now()
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r *stubUserRepo) FindByMail(_ context.Context, mail string) (*model.User, error) {
	for _, u := range r.m.users {
		if strings.EqualFold(u.Mail, mail) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, notFound()
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := r.m.users[id]
	if !ok {
		return nil, notFound()
	}
	cp := *u
	return &cp, nil
}

func (r *stubUserRepo) CPFTaken(_ context.Context, cpf string) (bool, error) {
	for _, u := range r.m.users {
		if u.CPF != nil && *u.CPF == cpf {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepo) ListUsers(_ context.Context, pendingOnly bool) ([]model.User, error) {
	var out []model.User
	for _, u := range r.m.users {
		if pendingOnly {
			if _, employee := r.m.employees[u.ID]; employee || u.EntryAllowed || u.Type != model.UserTypeEmployee {
				continue
			}
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *stubUserRepo) DeleteTx(_ *gorm.DB, id int64) error {
	if _, ok := r.m.users[id]; !ok {
		return notFound()
	}
	delete(r.m.users, id)
	return nil
}

func (r *stubUserRepo) UpdateEntryAllowedTx(_ *gorm.DB, id int64, allowed bool) error {
	u, ok := r.m.users[id]
	if !ok {
		return notFound()
	}
	u.EntryAllowed = allowed
	return nil
}

func (r *stubUserRepo) CreateEmployeeTx(_ *gorm.DB, e *model.Employee) error {
	cp := *e
	cp.User = nil
	r.m.employees[e.ID] = &cp
	return nil
}

func (r *stubUserRepo) employee(id int64) (*model.Employee, bool) {
	e, ok := r.m.employees[id]
	if !ok {
		return nil, false
	}
	cp := *e
	if u, ok := r.m.users[id]; ok {
		ucp := *u
		cp.User = &ucp
	}
	return &cp, true
}

func (r *stubUserRepo) FindEmployee(_ context.Context, id int64) (*model.Employee, error) {
	e, ok := r.employee(id)
	if !ok {
		return nil, notFound()
	}
	return e, nil
}

func (r *stubUserRepo) ListEmployees(_ context.Context) ([]model.Employee, error) {
	var out []model.Employee
	for id := range r.m.employees {
		e, _ := r.employee(id)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.Name < out[j].User.Name })
	return out, nil
}

func (r *stubUserRepo) UpdateEmployeeTx(_ *gorm.DB, id int64, fields map[string]any) error {
	e, ok := r.m.employees[id]
	if !ok {
		return notFound()
	}
	if v, ok := fields["active"]; ok {
		e.Active = v.(bool)
	}
	if v, ok := fields["commission"]; ok {
		e.Commission = v.(decimal.Decimal)
	}
	return nil
}

type stubTokenRepo struct{ m *memDB }

var _ repository.AuthTokenRepository = (*stubTokenRepo)(nil)

func (r *stubTokenRepo) DB() *gorm.DB { return nil }

func (r *stubTokenRepo) ReplaceTx(_ *gorm.DB, userID, issuedAt int64) error {
	r.m.tokens[userID] = issuedAt
	return nil
}

func (r *stubTokenRepo) Find(_ context.Context, userID int64) (*model.AuthToken, error) {
	at, ok := r.m.tokens[userID]
	if !ok {
		return nil, notFound()
	}
	return &model.AuthToken{UserID: userID, IssuedAt: at}, nil
}

func (r *stubTokenRepo) Delete(_ context.Context, userID int64) error {
	delete(r.m.tokens, userID)
	return nil
}

// ── Conditionals and sales ────────────────────────────────────────────────────

type stubConditionalRepo struct {
	m     *memDB
	users *stubUserRepo
}

var _ repository.ConditionalRepository = (*stubConditionalRepo)(nil)

func (r *stubConditionalRepo) DB() *gorm.DB { return nil }

func (r *stubConditionalRepo) CreateTx(_ *gorm.DB, c *model.Conditional) error {
	c.ID = r.m.nextID()
	c.CreatedAt = time.Now()
	for i := range c.Lines {
		c.Lines[i].ID = r.m.nextID()
		c.Lines[i].ConditionalID = c.ID
	}
	cp := *c
	cp.Lines = append([]model.ConditionalLine(nil), c.Lines...)
	r.m.conditionals[c.ID] = &cp
	return nil
}

func (r *stubConditionalRepo) FindByID(_ context.Context, id int64) (*model.Conditional, error) {
	return r.FindByIDTx(nil, id)
}

func (r *stubConditionalRepo) FindByIDTx(_ *gorm.DB, id int64) (*model.Conditional, error) {
	c, ok := r.m.conditionals[id]
	if !ok {
		return nil, notFound()
	}
	cp := *c
	if cl, ok := r.m.clients[c.ClientID]; ok {
		clcp := *cl
		cp.Client = &clcp
	}
	cp.Employee, _ = r.users.employee(c.EmployeeID)
	cp.Lines = make([]model.ConditionalLine, len(c.Lines))
	for i, l := range c.Lines {
		l.Product, _ = r.m.productCopy(l.ProductID, false)
		if v, ok := r.m.variants[l.CustomizedProductID]; ok {
			vcp := *v
			l.Variant = &vcp
		}
		cp.Lines[i] = l
	}
	return &cp, nil
}

func (r *stubConditionalRepo) TransitionTx(_ *gorm.DB, id int64, from, to string) error {
	c, ok := r.m.conditionals[id]
	if !ok || c.Status != from {
		return repository.ErrStatusChanged
	}
	c.Status = to
	return nil
}

func (r *stubConditionalRepo) matching(cr repository.ConditionalCriteria) []*model.Conditional {
	var out []*model.Conditional
	for _, c := range r.m.conditionals {
		if cr.Status != "" && c.Status != cr.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *stubConditionalRepo) List(_ context.Context, cr repository.ConditionalCriteria) ([]repository.ConditionalRow, error) {
	var out []repository.ConditionalRow
	for _, c := range r.matching(cr) {
		row := repository.ConditionalRow{ID: c.ID, Status: c.Status, CreatedAt: c.CreatedAt}
		if cl, ok := r.m.clients[c.ClientID]; ok {
			row.ClientName = cl.Name
		}
		if u, ok := r.m.users[c.EmployeeID]; ok {
			row.EmployeeName = u.Name
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *stubConditionalRepo) Counts(_ context.Context, cr repository.ConditionalCriteria) (repository.ConditionalCounts, error) {
	var counts repository.ConditionalCounts
	for _, c := range r.matching(cr) {
		counts.Total++
		switch c.Status {
		case model.ConditionalPending:
			counts.Pending++
		case model.ConditionalReturned:
			counts.Returned++
		case model.ConditionalCanceled:
			counts.Canceled++
		}
	}
	return counts, nil
}

type stubSaleRepo struct {
	m     *memDB
	users *stubUserRepo
}

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

func (r *stubSaleRepo) CreateTx(_ *gorm.DB, s *model.Sale) error {
	s.ID = r.m.nextID()
	s.CreatedAt = time.Now()
	for i := range s.Lines {
		s.Lines[i].ID = r.m.nextID()
		s.Lines[i].SaleID = s.ID
	}
	for i := range s.Payments {
		s.Payments[i].ID = r.m.nextID()
		s.Payments[i].SaleID = s.ID
	}
	cp := *s
	cp.Lines = append([]model.SaleLine(nil), s.Lines...)
	cp.Payments = append([]model.SalePayment(nil), s.Payments...)
	r.m.sales[s.ID] = &cp
	return nil
}

func (r *stubSaleRepo) FindByID(_ context.Context, id int64) (*model.Sale, error) {
	return r.FindByIDTx(nil, id)
}

func (r *stubSaleRepo) load(s *model.Sale) *model.Sale {
	cp := *s
	if cl, ok := r.m.clients[s.ClientID]; ok {
		clcp := *cl
		cp.Client = &clcp
	}
	cp.Employee, _ = r.users.employee(s.EmployeeID)
	cp.Lines = make([]model.SaleLine, len(s.Lines))
	for i, l := range s.Lines {
		l.Product, _ = r.m.productCopy(l.ProductID, false)
		if v, ok := r.m.variants[l.CustomizedProductID]; ok {
			vcp := *v
			l.Variant = &vcp
		}
		cp.Lines[i] = l
	}
	cp.Payments = make([]model.SalePayment, len(s.Payments))
	for i, p := range s.Payments {
		for j := range r.m.installments {
			if r.m.installments[j].ID == p.PaymentMethodInstallmentID {
				in := r.m.installments[j]
				p.Installment = &in
			}
		}
		cp.Payments[i] = p
	}
	return &cp
}

func (r *stubSaleRepo) FindByIDTx(_ *gorm.DB, id int64) (*model.Sale, error) {
	s, ok := r.m.sales[id]
	if !ok {
		return nil, notFound()
	}
	return r.load(s), nil
}

func (r *stubSaleRepo) TransitionTx(_ *gorm.DB, id int64, from, to string) error {
	s, ok := r.m.sales[id]
	if !ok || s.Status != from {
		return repository.ErrStatusChanged
	}
	s.Status = to
	return nil
}

func (r *stubSaleRepo) List(_ context.Context, c repository.SaleCriteria) ([]model.Sale, int64, error) {
	var out []model.Sale
	for _, s := range r.m.sales {
		if c.EmployeeID != nil && s.EmployeeID != *c.EmployeeID {
			continue
		}
		if c.Status != "" && s.Status != c.Status {
			continue
		}
		out = append(out, *r.load(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *stubSaleRepo) TotalsByPaymentMethod(_ context.Context, employeeID int64, _, _ *time.Time) ([]repository.PaymentMethodTotal, error) {
	totals := []repository.PaymentMethodTotal{
		{PaymentMethodID: 1, PaymentMethodName: "Pix", Value: decimal.Zero},
		{PaymentMethodID: 2, PaymentMethodName: "Cartao de credito", Value: decimal.Zero},
	}
	for _, s := range r.m.sales {
		if s.EmployeeID != employeeID || s.Status != model.SaleConfirmed {
			continue
		}
		seen := map[int64]bool{}
		for _, p := range r.load(s).Payments {
			idx := p.Installment.PaymentMethodID - 1
			totals[idx].Value = totals[idx].Value.Add(p.Value)
			if !seen[idx] {
				totals[idx].Sales++
				seen[idx] = true
			}
		}
	}
	return totals, nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

// fixture wires every service over one memDB.
type fixture struct {
	m            *memDB
	products     *stubProductRepo
	clients      *stubClientRepo
	users        *stubUserRepo
	lookups      *stubLookupRepo
	store        *cache.MemoryStore
	refs         *service.ReferenceData
	events       service.EventService
	engine       *service.ReservationEngine
	catalog      service.CatalogService
	conditionals service.ConditionalService
	sales        service.SaleService

	clientID   int64
	employeeID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := newMemDB()
	f := &fixture{
		m:        m,
		products: &stubProductRepo{m: m},
		clients:  &stubClientRepo{m: m},
		users:    &stubUserRepo{m: m},
		lookups:  &stubLookupRepo{m: m},
		store:    cache.NewMemoryStore(),
	}
	movements := &stubMovementRepo{m: m}
	f.refs = service.NewReferenceData(f.store, f.lookups, time.Hour)
	f.events = service.NewEventService(&stubEventRepo{m: m}, f.refs)
	f.engine = service.NewReservationEngine(f.products, f.clients, f.users, movements, f.store)
	f.catalog = service.NewCatalogService(f.products, movements, f.events, f.refs, f.store)
	f.conditionals = service.NewConditionalService(&stubConditionalRepo{m: m, users: f.users}, f.engine, f.events)
	f.sales = service.NewSaleService(&stubSaleRepo{m: m, users: f.users}, f.engine, f.events, f.refs, true)

	mail := "maria@example.com"
	client := &model.Client{Name: "Maria", Mail: &mail}
	_ = f.clients.CreateTx(nil, client)
	f.clientID = client.ID
	f.employeeID = f.addEmployee("Ana", true, true)
	return f
}

func (f *fixture) addEmployee(name string, active, entryAllowed bool) int64 {
	u := &model.User{Name: name, Mail: strings.ToLower(name) + "@example.com", Type: model.UserTypeEmployee, EntryAllowed: entryAllowed}
	_ = f.users.CreateTx(nil, u)
	_ = f.users.CreateEmployeeTx(nil, &model.Employee{ID: u.ID, Active: active, Commission: decimal.RequireFromString("0.1")})
	return u.ID
}

// seedVariant stores an active product with one variant, bypassing the catalog.
func (f *fixture) seedVariant(code string, price string, qty int) (productID, variantID int64) {
	p := &model.Product{Code: code, Name: "Produto " + code, IsActive: true}
	_ = f.products.CreateTx(nil, p)
	v := &model.CustomizedProduct{ProductID: p.ID, SizeID: 1, Price: decimal.RequireFromString(price), Quantity: qty, IsActive: true}
	_ = f.products.CreateVariantTx(nil, v)
	return p.ID, v.ID
}

func (f *fixture) variant(id int64) *model.CustomizedProduct { return f.m.variants[id] }

func newSaleServiceWithoutVerification(f *fixture) service.SaleService {
	return service.NewSaleService(&stubSaleRepo{m: f.m, users: f.users}, f.engine, f.events, f.refs, false)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func boolp(b bool) *bool { return &b }
