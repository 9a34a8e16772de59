package app

import (
	"coder_edu_analytics/internal/config"
	"coder_edu_analytics/internal/controller"
	"coder_edu_analytics/internal/repository"
	"coder_edu_analytics/internal/service"
	"coder_edu_analytics/pkg/configwatcher"
	"coder_edu_analytics/pkg/database"
	"coder_edu_analytics/pkg/logger"
	"coder_edu_analytics/pkg/monitoring"
	"coder_edu_analytics/pkg/security"
	"coder_edu_analytics/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services
}

type repositories struct {
	history *repository.HistoryRepository
	module  *repository.ModuleRepository
}

type services struct {
	pattern    *service.PatternService
	prediction *service.PredictionService
}

type controllers struct {
	analytics  *controller.AnalyticsController
	prediction *controller.PredictionController
	health     *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		history: repository.NewHistoryRepository(db),
		module:  repository.NewModuleRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	return &services{
		pattern:    service.NewPatternService(repos.history, rdb, cfg.Analytics),
		prediction: service.NewPredictionService(repos.history, repos.module),
	}
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		analytics:  controller.NewAnalyticsController(s.pattern),
		prediction: controller.NewPredictionController(s.prediction),
		health:     controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 10000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// watchConfig 热更新分析阈值，数据库等连接类配置改动仍需重启
func (a *App) watchConfig(configPath string) {
	go configwatcher.WatchConfig(configPath+"/config.yaml", func() {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Log.Error("config reload failed", zap.Error(err))
			return
		}
		a.services.pattern.SetAnalyticsConfig(cfg.Analytics)
		logger.Log.Info("analytics config reloaded",
			zap.Float64("minConfidence", cfg.Analytics.MinConfidence),
			zap.Duration("cacheTTL", cfg.Analytics.PatternCacheTTL),
		)
	})
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("learning-analytics", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)
	app.watchConfig(configPath)

	return app
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	}
	return gin.DebugMode
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Analytics server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if err := a.Redis.Close(); err != nil {
		logger.Log.Warn("redis close failed", zap.Error(err))
	}

	log.Println("Server exiting")
}
