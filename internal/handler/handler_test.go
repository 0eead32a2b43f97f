package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/middleware"
	"github.com/VCalixtoR/gestaomt-back/internal/service"
	"github.com/VCalixtoR/gestaomt-back/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeAuth struct {
	mail, password string
	err            error
}

func (f *fakeAuth) Login(_ context.Context, mail, password string) (*dto.LoginResponse, error) {
	f.mail, f.password = mail, password
	if f.err != nil {
		return nil, f.err
	}
	return &dto.LoginResponse{Token: "tok", TokenType: "bearer"}, nil
}
func (f *fakeAuth) Refresh(context.Context, int64) (*dto.LoginResponse, error) {
	return &dto.LoginResponse{Token: "tok2"}, nil
}
func (f *fakeAuth) Logout(context.Context, int64) error { return nil }
func (f *fakeAuth) CheckSession(context.Context, int64, int64) error { return nil }

type fakeCatalog struct {
	service.CatalogService
	actor   int64
	created dto.ProductRequest
	newID   int64
	err     error
}

func (f *fakeCatalog) Create(_ context.Context, actorID int64, req dto.ProductRequest) (int64, error) {
	f.actor, f.created = actorID, req
	return 11, f.err
}

func (f *fakeCatalog) Update(_ context.Context, _ int64, _ int64, _ dto.ProductRequest) (int64, error) {
	return f.newID, f.err
}

func (f *fakeCatalog) List(_ context.Context, fl dto.ProductFilter) (*dto.ProductListResponse, error) {
	return &dto.ProductListResponse{Count: int64(fl.Limit)}, f.err
}

type fakeSales struct {
	service.SaleService
	err error
}

func (f *fakeSales) Cancel(context.Context, int64, int64) error { return f.err }

type fakeConditionals struct {
	service.ConditionalService
	status string
}

func (f *fakeConditionals) PatchStatus(_ context.Context, _ int64, _ int64, status string) error {
	f.status = status
	return nil
}

type fakeUsers struct {
	service.UserService
	registered dto.RegisterUserRequest
	approved   int64
	actor      int64
	err        error
}

func (f *fakeUsers) Register(_ context.Context, req dto.RegisterUserRequest) (int64, error) {
	f.registered = req
	return 21, f.err
}

func (f *fakeUsers) Approve(_ context.Context, actorID, id int64) error {
	f.actor, f.approved = actorID, id
	return f.err
}

type fakeClients struct {
	service.ClientService
	created dto.CreateClientRequest
}

func (f *fakeClients) Create(_ context.Context, _ int64, req dto.CreateClientRequest) (int64, error) {
	f.created = req
	return 5, nil
}

type fakeReports struct {
	service.ReportService
	path    string
	emailed int64
	err     error
}

func (f *fakeReports) ConditionalsReport(context.Context, dto.ConditionalFilter) (*service.Rendered, error) {
	return &service.Rendered{Path: f.path, Name: "condicionales.pdf"}, f.err
}

func (f *fakeReports) EmailSaleReceipt(_ context.Context, id int64) error {
	f.emailed = id
	return f.err
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// newEngine mounts routes behind the error renderer and fixed claims for
// user 3, as the router would after JWTAuth.
func newEngine(mount func(r gin.IRoutes)) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(), func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{UserID: 3, Type: "employee"})
	})
	mount(r)
	return r
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestLoginUsesBasicAuth(t *testing.T) {
	svc := &fakeAuth{}
	h := NewAuthHandler(svc)
	r := newEngine(func(r gin.IRoutes) { r.POST("/login", h.Login) })

	w := send(r, http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.SetBasicAuth("ana@example.com", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", svc.mail)
	assert.Equal(t, "secret", svc.password)

	svc.err = apierror.Unauthorizedf("Credenciales invalidas")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"detail":"Credenciales invalidas"}`, w.Body.String())
}

func TestProductCreate(t *testing.T) {
	svc := &fakeCatalog{}
	h := NewProductsHandler(svc)
	r := newEngine(func(r gin.IRoutes) { r.PUT("/products", h.Create) })

	w := send(r, http.MethodPut, "/products", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPut, "/products", map[string]any{"name": "Blusa"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var verr apierror.ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.Equal(t, "required", verr.Fields["Code"])

	body := map[string]any{
		"code": "B-1", "name": "Blusa",
		"variants": []map[string]any{{"size_id": 1, "price": "27.00", "quantity": 5}},
	}
	w = send(r, http.MethodPut, "/products", body)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":11}`, w.Body.String())
	assert.Equal(t, int64(3), svc.actor)
	require.Len(t, svc.created.Variants, 1)
	assert.Equal(t, "27", svc.created.Variants[0].Price.String())

	svc.err = apierror.Conflictf("Ya existe un producto activo con el codigo B-1")
	w = send(r, http.MethodPut, "/products", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "B-1")
}

func TestProductUpdateReportsForkedID(t *testing.T) {
	svc := &fakeCatalog{newID: 42}
	h := NewProductsHandler(svc)
	r := newEngine(func(r gin.IRoutes) { r.PATCH("/products/:id", h.Update) })

	w := send(r, http.MethodPatch, "/products/abc", map[string]any{"code": "B", "name": "N"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPatch, "/products/7", map[string]any{"code": "B", "name": "N"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "42", w.Header().Get(ProductIDHeader))
}

func TestProductListQueryValidation(t *testing.T) {
	h := NewProductsHandler(&fakeCatalog{})
	r := newEngine(func(r gin.IRoutes) { r.GET("/products", h.List) })

	w := send(r, http.MethodGet, "/products", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":50,"products":null}`, w.Body.String())

	w = send(r, http.MethodGet, "/products?limit=1000", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = send(r, http.MethodGet, "/products?color_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConditionalPatchAndPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3"), 0o600))

	svc := &fakeConditionals{}
	reports := &fakeReports{path: path}
	h := NewConditionalsHandler(svc, reports)
	r := newEngine(func(r gin.IRoutes) {
		r.GET("/conditionals", h.List)
		r.PATCH("/conditionals/:id", h.PatchStatus)
	})

	w := send(r, http.MethodPatch, "/conditionals/4", map[string]any{"status": "returned"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "returned", svc.status)

	w = send(r, http.MethodPatch, "/conditionals/4", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = send(r, http.MethodGet, "/conditionals?format=pdf", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "condicionales.pdf")
	assert.Equal(t, "%PDF-1.3", w.Body.String())

	w = send(r, http.MethodGet, "/conditionals?format=xls", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSaleCancelAndReceipt(t *testing.T) {
	sales := &fakeSales{}
	reports := &fakeReports{}
	h := NewSalesHandler(sales, reports)
	r := newEngine(func(r gin.IRoutes) {
		r.DELETE("/sales/:id", h.Cancel)
		r.POST("/sales/:id/receipt", h.EmailReceipt)
	})

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodDelete, "/sales/9", nil).Code)

	sales.err = apierror.Conflictf("La venta 9 ya fue cancelada")
	w := send(r, http.MethodDelete, "/sales/9", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"detail":"La venta 9 ya fue cancelada"}`, w.Body.String())

	w = send(r, http.MethodPost, "/sales/9/receipt", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, int64(9), reports.emailed)

	reports.err = apierror.Validationf("El cliente no tiene mail registrado")
	w = send(r, http.MethodPost, "/sales/9/receipt", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUserRegisterAndApprove(t *testing.T) {
	svc := &fakeUsers{}
	h := NewUsersHandler(svc)
	r := newEngine(func(r gin.IRoutes) {
		r.PUT("/users", h.Register)
		r.PATCH("/users/pending/:id", h.Approve)
	})

	w := send(r, http.MethodPut, "/users", map[string]any{"name": "Bia", "mail": "not-a-mail", "password": "segredo"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var verr apierror.ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.Equal(t, "email", verr.Fields["Mail"])

	w = send(r, http.MethodPut, "/users", map[string]any{
		"name": "Bia", "mail": "bia@example.com", "password": "segredo", "birth_date": "1990-05-20", "gender": "F",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":21}`, w.Body.String())
	assert.Equal(t, "1990-05-20", *svc.registered.BirthDate)

	w = send(r, http.MethodPut, "/users", map[string]any{
		"name": "Bia", "mail": "bia@example.com", "password": "segredo", "birth_date": "20/05/1990",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPatch, "/users/pending/8", nil).Code)
	assert.Equal(t, int64(8), svc.approved)
	assert.Equal(t, int64(3), svc.actor)

	svc.err = apierror.Conflictf("El usuario ya tiene permiso de ingreso")
	assert.Equal(t, http.StatusConflict, send(r, http.MethodPatch, "/users/pending/8", nil).Code)
}

func TestClientCreateValidatesDetails(t *testing.T) {
	svc := &fakeClients{}
	h := NewClientsHandler(svc)
	r := newEngine(func(r gin.IRoutes) { r.PUT("/clients", h.Create) })

	w := send(r, http.MethodPut, "/clients", map[string]any{"name": "Joana"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var verr apierror.ValidationError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.Equal(t, "required", verr.Fields["Gender"])

	w = send(r, http.MethodPut, "/clients", map[string]any{
		"name": "Joana", "gender": "F",
		"children": []map[string]any{{"name": "Lia", "birth_date": "2018-03-01"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = send(r, http.MethodPut, "/clients", map[string]any{
		"name": "Joana", "gender": "F",
		"contacts": []map[string]any{{"type": "instagram", "value": "@joana"}},
		"children": []map[string]any{{"name": "Lia", "birth_date": "2018-03-01", "product_size_id": 2}},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, svc.created.Children, 1)
	assert.Equal(t, int64(2), svc.created.Children[0].ProductSizeID)
	require.Len(t, svc.created.Contacts, 1)
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return nil
}

func TestInvalidateCache(t *testing.T) {
	refs := &fakeInvalidator{}
	h := NewAdminHandler(refs, worker.NewDeadLetters(nil))
	r := newEngine(func(r gin.IRoutes) { r.POST("/admin/cache/invalidate", h.InvalidateCache) })

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodPost, "/admin/cache/invalidate", nil).Code)
	assert.Equal(t, 1, refs.calls)
}

func TestDeadLetters(t *testing.T) {
	h := NewAdminHandler(&fakeInvalidator{}, worker.NewDeadLetters(nil))
	r := newEngine(func(r gin.IRoutes) { r.GET("/admin/dlq", h.DeadLetters) })

	w := send(r, http.MethodGet, "/admin/dlq", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"counts":{"jobs:email":0,"jobs:report_cleanup":0}}`, w.Body.String())

	w = send(r, http.MethodGet, "/admin/dlq?source=jobs:email", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"counts":{"jobs:email":0,"jobs:report_cleanup":0},"entries":[]}`, w.Body.String())

	w = send(r, http.MethodGet, "/admin/dlq?source=nope", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthWithoutRedis(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health(fakePinger{}, nil, nil))

	w := send(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"db":"connected","redis":"disabled","smtp":"unknown"}`, w.Body.String())

	r = gin.New()
	r.GET("/health", Health(fakePinger{err: assert.AnError}, nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, send(r, http.MethodGet, "/health", nil).Code)
}
