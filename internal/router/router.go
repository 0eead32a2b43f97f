package router

import (
	"time"

	_ "github.com/VCalixtoR/gestaomt-back/docs"
	"github.com/VCalixtoR/gestaomt-back/internal/cache"
	"github.com/VCalixtoR/gestaomt-back/internal/config"
	"github.com/VCalixtoR/gestaomt-back/internal/handler"
	"github.com/VCalixtoR/gestaomt-back/internal/infra"
	"github.com/VCalixtoR/gestaomt-back/internal/middleware"
	"github.com/VCalixtoR/gestaomt-back/internal/model"
	"github.com/VCalixtoR/gestaomt-back/internal/repository"
	"github.com/VCalixtoR/gestaomt-back/internal/service"
	"github.com/VCalixtoR/gestaomt-back/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
//
// rdb may be nil: the reference cache then lives in process memory, email
// jobs run inline and generated reports are removed by timers.
func New(cfg *config.Config, db *infra.Database, rdb *redis.Client, mailer *infra.Mailer) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	var (
		store   cache.Store
		queue   service.EmailQueue
		cleanup worker.CleanupScheduler
	)
	if rdb != nil {
		store = cache.NewRedisStore(rdb)
		queue = worker.NewDispatcher(rdb)
		cleanup = worker.NewRedisCleanupScheduler(rdb, cfg.ReportTTL())
	} else {
		store = cache.NewMemoryStore()
		queue = worker.NewInlineDispatcher(worker.NewHandlers(mailer))
		cleanup = worker.NewTimerCleanupScheduler(cfg.ReportTTL())
	}
	renderer := infra.NewReportRenderer(cfg.ReportStoragePath, cfg.StoreName)

	// ── Repositories ─────────────────────────────────────────────────────────
	gdb := db.Gorm()
	productRepo := repository.NewProductRepository(gdb)
	movementRepo := repository.NewStockMovementRepository(gdb)
	lookupRepo := repository.NewLookupRepository(gdb)
	eventRepo := repository.NewEventRepository(gdb)
	clientRepo := repository.NewClientRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)
	tokenRepo := repository.NewAuthTokenRepository(gdb)
	conditionalRepo := repository.NewConditionalRepository(gdb)
	saleRepo := repository.NewSaleRepository(gdb)

	// ── Services ─────────────────────────────────────────────────────────────
	refs := service.NewReferenceData(store, lookupRepo, cfg.ReferenceCacheTTL())
	eventSvc := service.NewEventService(eventRepo, refs)
	authSvc := service.NewAuthService(userRepo, tokenRepo, eventSvc, cfg)
	catalogSvc := service.NewCatalogService(productRepo, movementRepo, eventSvc, refs, store)
	engine := service.NewReservationEngine(productRepo, clientRepo, userRepo, movementRepo, store)
	conditionalSvc := service.NewConditionalService(conditionalRepo, engine, eventSvc)
	saleSvc := service.NewSaleService(saleRepo, engine, eventSvc, refs, cfg.SaleVerifyTotal)
	clientSvc := service.NewClientService(clientRepo, eventSvc, refs)
	userSvc := service.NewUserService(userRepo, eventSvc)
	employeeSvc := service.NewEmployeeService(userRepo, saleRepo, eventSvc)
	reportSvc := service.NewReportService(saleSvc, conditionalSvc, renderer, cleanup, queue)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	productsH := handler.NewProductsHandler(catalogSvc)
	conditionalsH := handler.NewConditionalsHandler(conditionalSvc, reportSvc)
	salesH := handler.NewSalesHandler(saleSvc, reportSvc)
	clientsH := handler.NewClientsHandler(clientSvc)
	employeesH := handler.NewEmployeesHandler(employeeSvc)
	usersH := handler.NewUsersHandler(userSvc)
	eventsH := handler.NewEventsHandler(eventSvc)
	adminH := handler.NewAdminHandler(refs, worker.NewDeadLetters(rdb))

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, mailer.Breaker()))

	dbMW := middleware.RequireDatabase(db)

	// Auth (public)
	r.POST("/v1/auth/login", dbMW, middleware.LoginRateLimiter(), authH.Login)
	r.PUT("/v1/users", dbMW, middleware.RateLimiter(10, time.Minute), usersH.Register)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret, authSvc)
	v1 := r.Group("/v1", dbMW, jwtMW)
	{
		v1.POST("/auth/refresh", authH.Refresh)
		v1.DELETE("/auth/logout", authH.Logout)

		products := v1.Group("/products")
		{
			products.PUT("", productsH.Create)
			products.GET("", productsH.List)
			products.GET("/info", productsH.Info)
			products.GET("/code/:code", productsH.GetByCode)
			products.PATCH("/:id", productsH.Update)
			products.DELETE("/:id", productsH.Delete)
			products.GET("/:id/movements", productsH.Movements)
		}

		conditionals := v1.Group("/conditionals")
		{
			conditionals.PUT("", conditionalsH.Create)
			conditionals.GET("", conditionalsH.List)
			conditionals.GET("/:id", conditionalsH.Get)
			conditionals.PATCH("/:id", conditionalsH.PatchStatus)
			conditionals.GET("/:id/pdf", conditionalsH.PDF)
		}

		sales := v1.Group("/sales")
		{
			sales.PUT("", salesH.Create)
			sales.GET("", salesH.List)
			sales.GET("/:id", salesH.Get)
			sales.DELETE("/:id", salesH.Cancel)
			sales.GET("/:id/pdf", salesH.PDF)
			sales.POST("/:id/receipt", salesH.EmailReceipt)
		}
		v1.GET("/payment-methods", salesH.PaymentMethods)

		clients := v1.Group("/clients")
		{
			clients.PUT("", clientsH.Create)
			clients.GET("", clientsH.List)
			clients.GET("/:id", clientsH.Get)
			clients.PATCH("/:id", clientsH.Update)
		}

		employees := v1.Group("/employees")
		{
			employees.GET("", employeesH.List)
			employees.GET("/:id", employeesH.Get)
			employees.PATCH("/:id", middleware.RequireRole(model.UserTypeAdmin), employeesH.Update)
			employees.GET("/:id/sales", employeesH.Sales)
			employees.GET("/:id/sales/summary", employeesH.Summary)
		}

		adminOnly := middleware.RequireRole(model.UserTypeAdmin)
		users := v1.Group("/users")
		{
			users.GET("", adminOnly, usersH.List)
			users.GET("/pending", adminOnly, usersH.Pending)
			users.PATCH("/pending/:id", adminOnly, usersH.Approve)
			users.DELETE("/pending/:id", adminOnly, usersH.Deny)
			users.GET("/:id", usersH.Get)
		}

		v1.GET("/events", eventsH.List)

		admin := v1.Group("/admin", middleware.RequireRole(model.UserTypeAdmin))
		{
			admin.POST("/cache/invalidate", adminH.InvalidateCache)
			admin.GET("/dlq", adminH.DeadLetters)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
