//go:build integration

// Run with: go test -tags integration ./internal/router/... -v
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/VCalixtoR/gestaomt-back/internal/config"
	"github.com/VCalixtoR/gestaomt-back/internal/infra"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

type testEnv struct {
	server     *httptest.Server
	token      string
	employeeID int64
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:15-alpine",
		tcPostgres.WithDatabase("gestaomt_test"),
		tcPostgres.WithUsername("gestaomt"),
		tcPostgres.WithPassword("gestaomt"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                      "test",
		JWTSecret:                "test-secret-key",
		JWTExpirationHours:       8,
		DatabaseURL:              pgURL,
		DBMaxOpenConns:           10,
		DBIdleTimeoutSeconds:     600,
		RedisURL:                 rdURL,
		CORSAllowedOrigins:       "*",
		StoreName:                "GestaoMT Test",
		ReportStoragePath:        t.TempDir(),
		ReportTTLSeconds:         60,
		ReferenceCacheTTLSeconds: 60,
		SaleVerifyTotal:          true,
	}

	require.NoError(t, infra.MigrateUp(cfg.DatabaseURL))
	db, err := infra.NewDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	// Seed an admin that is also an employee
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := repository.NewUserRepository(db.Gorm())
	user := &model.User{Name: "Admin", Mail: "admin@e2e.test", PasswordHash: string(hash), Type: model.UserTypeAdmin, EntryAllowed: true}
	require.NoError(t, db.Gorm().Transaction(func(tx *gorm.DB) error {
		if err := users.CreateTx(tx, user); err != nil {
			return err
		}
		return users.CreateEmployeeTx(tx, &model.Employee{ID: user.ID, Active: true, Commission: decimal.RequireFromString("0.1")})
	}))

	mailer := infra.NewMailer(cfg, infra.NewCircuitBreaker(infra.DefaultCBConfig()))
	srv := httptest.NewServer(New(cfg, db, rdb, mailer))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/auth/login", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin@e2e.test", "secret")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp, &login)
	require.NotEmpty(t, login.Token)

	return &testEnv{server: srv, token: login.Token, employeeID: user.ID}
}

type productView struct {
	ID       int64 `json:"id"`
	Variants []struct {
		ID       int64 `json:"id"`
		Quantity int   `json:"quantity"`
	} `json:"variants"`
}

func (e *testEnv) product(t *testing.T, code string) productView {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/v1/products/code/"+code, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p productView
	decodeJSON(t, resp, &p)
	require.Len(t, p.Variants, 1)
	return p
}

func (e *testEnv) createID(t *testing.T, path string, body any) int64 {
	t.Helper()
	resp := e.do(t, http.MethodPut, path, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, path)
	var created struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, resp, &created)
	return created.ID
}

// seedCatalog creates a client and product B-1 (one variant, 27.00 × 5).
func (e *testEnv) seedCatalog(t *testing.T) (clientID int64, p productView) {
	clientID = e.createID(t, "/v1/clients", map[string]any{"name": "Maria", "gender": "F", "mail": "maria@example.com"})
	e.createID(t, "/v1/products", map[string]any{
		"code": "B-1", "name": "Blusa",
		"variants": []map[string]any{{"size_id": 1, "price": "27.00", "quantity": 5}},
	})
	return clientID, e.product(t, "B-1")
}

func (e *testEnv) saleBody(clientID int64, p productView, qty int, total string) map[string]any {
	return map[string]any{
		"client_id":   clientID,
		"employee_id": e.employeeID,
		"discount":    "0.1",
		"total_value": total,
		"products": []map[string]any{{
			"product_id": p.ID,
			"variants":   []map[string]any{{"customized_product_id": p.Variants[0].ID, "quantity": qty}},
		}},
		"payments": []map[string]any{{"payment_method_installment_id": 1, "value": total}},
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestSaleCycleRestoresStock(t *testing.T) {
	env := setupTestEnv(t)
	clientID, p := env.seedCatalog(t)

	saleID := env.createID(t, "/v1/sales", env.saleBody(clientID, p, 2, "48.60"))
	assert.Equal(t, 3, env.product(t, "B-1").Variants[0].Quantity)

	resp := env.do(t, http.MethodGet, "/v1/sales/"+itoa(saleID)+"/pdf", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, "/v1/sales/"+itoa(saleID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 5, env.product(t, "B-1").Variants[0].Quantity)

	resp = env.do(t, http.MethodDelete, "/v1/sales/"+itoa(saleID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestConditionalReturn(t *testing.T) {
	env := setupTestEnv(t)
	clientID, p := env.seedCatalog(t)

	condID := env.createID(t, "/v1/conditionals", map[string]any{
		"client_id":   clientID,
		"employee_id": env.employeeID,
		"products": []map[string]any{{
			"product_id": p.ID,
			"variants":   []map[string]any{{"customized_product_id": p.Variants[0].ID, "quantity": 4}},
		}},
	})
	assert.Equal(t, 1, env.product(t, "B-1").Variants[0].Quantity)

	resp := env.do(t, http.MethodPatch, "/v1/conditionals/"+itoa(condID), map[string]string{"status": "returned"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 5, env.product(t, "B-1").Variants[0].Quantity)

	resp = env.do(t, http.MethodPatch, "/v1/conditionals/"+itoa(condID), map[string]string{"status": "canceled"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

// Concurrent sales of the same variant never oversell: each accepted sale
// takes 2 units and the stock never goes negative.
func TestConcurrentSalesDoNotOversell(t *testing.T) {
	env := setupTestEnv(t)
	clientID, p := env.seedCatalog(t)

	const buyers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := env.do(t, http.MethodPut, "/v1/sales", env.saleBody(clientID, p, 2, "48.60"))
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	left := env.product(t, "B-1").Variants[0].Quantity
	assert.LessOrEqual(t, accepted, 2)
	assert.Equal(t, 5-2*accepted, left)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setupTestEnv(t)
	anon := &testEnv{server: env.server}

	resp := anon.do(t, http.MethodGet, "/v1/products", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, "/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/v1/products", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSwaggerDocServed(t *testing.T) {
	env := setupTestEnv(t)
	resp := (&testEnv{server: env.server}).do(t, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	decodeJSON(t, resp, &doc)
	assert.Contains(t, doc.Paths, "/v1/users/pending/{id}")
}

func TestRegistrationWaitsForApproval(t *testing.T) {
	env := setupTestEnv(t)
	anon := &testEnv{server: env.server}

	id := anon.createID(t, "/v1/users", map[string]any{
		"name": "Bia", "mail": "bia@e2e.test", "password": "segredo", "gender": "F", "birth_date": "1995-04-02",
	})

	login := func() int {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/v1/auth/login", nil)
		require.NoError(t, err)
		req.SetBasicAuth("bia@e2e.test", "segredo")
		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusUnauthorized, login())

	resp := env.do(t, http.MethodGet, "/v1/users/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending []struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, resp, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	resp = env.do(t, http.MethodPatch, "/v1/users/pending/"+itoa(id), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, login())

	resp = env.do(t, http.MethodGet, "/v1/employees/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var emp struct {
		Commission string `json:"commission"`
	}
	decodeJSON(t, resp, &emp)
	assert.Equal(t, "0.03", emp.Commission)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
