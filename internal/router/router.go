package router

import (
	"time"

	"github.com/S1njack/price-tracker-demo/internal/config"
	"github.com/S1njack/price-tracker-demo/internal/handler"
	"github.com/S1njack/price-tracker-demo/internal/infra"
	"github.com/S1njack/price-tracker-demo/internal/middleware"
	"github.com/S1njack/price-tracker-demo/internal/repository"
	"github.com/S1njack/price-tracker-demo/internal/scraper"
	"github.com/S1njack/price-tracker-demo/internal/search"
	"github.com/S1njack/price-tracker-demo/internal/service"
	"github.com/S1njack/price-tracker-demo/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis, with the
// browser session feeding the search pipeline.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, session *scraper.Session, aggCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(200, time.Minute)) // 200 req/min per IP

	// ── Search pipeline ──────────────────────────────────────────────────────
	aggregator := scraper.NewPriceSpy(session)
	extractor := scraper.NewExtractor(session)
	orchestrator := search.NewOrchestrator(aggregator, scraper.Retailers(session), extractor, aggCB, search.Options{
		OpTimeout:     time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
		CallTimeout:   time.Duration(cfg.CallTimeoutSeconds) * time.Second,
		Concurrency:   cfg.SearchConcurrency,
		FallbackLimit: cfg.FallbackResultLimit,
	})

	// ── Repositories ─────────────────────────────────────────────────────────
	groupRepo := repository.NewGroupRepository(db)
	productRepo := repository.NewProductRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	catalogSvc := service.NewCatalogService(orchestrator, extractor, groupRepo, productRepo, historyRepo, dispatcher, cfg.MaxTrackedProducts)

	// ── Handlers ─────────────────────────────────────────────────────────────
	searchH := handler.NewSearchHandler(catalogSvc)
	productsH := handler.NewProductsHandler(catalogSvc)
	groupsH := handler.NewGroupsHandler(catalogSvc, dispatcher)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/api/health", handler.Health(db, rdb))

	api := r.Group("/api")
	{
		// Scrape-triggering endpoints carry their own strict limits:
		// a search fans out to four retailer sites plus the aggregator.
		api.POST("/products", middleware.ScrapeRateLimiter(10), searchH.AddProduct)
		api.POST("/search-preview", middleware.ScrapeRateLimiter(10), searchH.Preview)
		api.POST("/products/add-selected", middleware.ScrapeRateLimiter(20), searchH.AddSelected)
		api.POST("/check-prices", middleware.ScrapeRateLimiter(5), searchH.CheckPrices)

		api.GET("/products", productsH.List)
		api.GET("/products/:id/history", productsH.History)
		api.DELETE("/products/:id", productsH.Delete)

		api.GET("/groups", groupsH.List)
		api.GET("/groups/:id", groupsH.Comparison)
		api.DELETE("/groups/:id", groupsH.Delete)
		api.POST("/groups/:id/backfill", middleware.ScrapeRateLimiter(10), groupsH.Backfill)
	}

	return r
}
