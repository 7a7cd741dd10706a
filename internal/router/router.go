package router

import (
	"time"

	"github.com/dorian-cesar/backend-banos/internal/caf"
	"github.com/dorian-cesar/backend-banos/internal/config"
	"github.com/dorian-cesar/backend-banos/internal/folio"
	"github.com/dorian-cesar/backend-banos/internal/handler"
	"github.com/dorian-cesar/backend-banos/internal/infra"
	"github.com/dorian-cesar/backend-banos/internal/middleware"
	"github.com/dorian-cesar/backend-banos/internal/repository"
	"github.com/dorian-cesar/backend-banos/internal/service"
	"github.com/dorian-cesar/backend-banos/internal/sii"
	"github.com/dorian-cesar/backend-banos/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis.
// The SII gateway, CAF store and mailer are shared with the worker pool, so
// they come in from main instead of being built here.
func New(
	cfg *config.Config,
	db *gorm.DB,
	rdb *redis.Client,
	siiCB *infra.CircuitBreaker,
	cafStore *caf.Store,
	gw sii.Gateway,
	mailer *infra.Mailer,
	dispatcher *worker.Dispatcher,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	boletaRepo := repository.NewBoletaRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	servicioRepo := repository.NewServicioRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	allocator := folio.NewAllocator(cafStore)

	authSvc := service.NewAuthService(usuarioRepo, cfg)
	boletaSvc := service.NewBoletaService(boletaRepo, allocator, cafStore, dispatcher,
		gw, rdb, mailer, cfg.AlertaMinFolios, cfg.AlertaEmail)
	cajaSvc := service.NewCajaService(cajaRepo, servicioRepo)
	servicioSvc := service.NewServicioService(servicioRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	boletasH := handler.NewBoletasHandler(boletaSvc)
	cajaH := handler.NewCajaHandler(cajaSvc)
	serviciosH := handler.NewServiciosHandler(servicioSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, siiCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth (public)
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	api := r.Group("/api", jwtMW)
	{
		todos := middleware.RequireRole("cajero", "supervisor", "administrador")
		supervision := middleware.RequireRole("supervisor", "administrador")
		admin := middleware.RequireRole("administrador")

		boletas := api.Group("/boletas")
		{
			boletas.POST("/enviar", todos, boletasH.Emitir)
			boletas.POST("/enviar-lote", todos, boletasH.EmitirLote)
			boletas.GET("", supervision, boletasH.Listar)
			boletas.GET("/folios-restantes", todos, boletasH.FoliosRestantes)
			boletas.GET("/info-caf", supervision, boletasH.InfoCAF)
			boletas.POST("/solicitar-folios", admin, boletasH.SolicitarFolios)
		}

		api.POST("/aperturas-cierres", todos, cajaH.Abrir)
		api.POST("/aperturas-cierres/:id/cerrar", todos, cajaH.Cerrar)
		api.GET("/aperturas-cierres", supervision, cajaH.ListarAperturas)

		api.POST("/movimientos", todos, cajaH.RegistrarMovimiento)
		api.GET("/movimientos", todos, cajaH.ListarMovimientos)

		api.GET("/services", todos, serviciosH.Listar)
		servicios := api.Group("/services", admin)
		{
			servicios.POST("", serviciosH.Crear)
			servicios.PUT("/:id", serviciosH.Actualizar)
		}

		usuarios := api.Group("/users", admin)
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
			usuarios.PUT("/:id", usuariosH.Actualizar)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
