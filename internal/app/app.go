package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"xp_engine/internal/config"
	"xp_engine/internal/controller"
	"xp_engine/internal/event"
	"xp_engine/internal/middleware"
	"xp_engine/internal/repository"
	"xp_engine/internal/service"
	"xp_engine/pkg/database"
	"xp_engine/pkg/lock"
	"xp_engine/pkg/logger"
	"xp_engine/pkg/monitoring"
	"xp_engine/pkg/security"
	"xp_engine/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	Tuning *service.EngineTuning

	publisher       *event.EventPublisher
	tracer          *sdktrace.TracerProvider
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	attempts    repository.AttemptStateStore
	readTime    repository.ReadTimeStore
	progress    service.ProgressCache
	gradebook   *repository.GradebookRepository
	content     *repository.CourseContentRepository
	completion  *repository.ResourceCompletionRepository
	proficiency *repository.ProficiencyRepository
	streak      *repository.StreakRepository
}

type services struct {
	attempt      *service.AttemptService
	finalization *service.FinalizationService
	readTime     *service.ReadTimeService
	banked       *service.BankedXPService
	gradebook    *service.GradebookService
	completion   *service.CompletionService
	streak       *service.StreakService
	proficiency  *service.ProficiencyService
}

type controllers struct {
	attempt    *controller.AttemptController
	assessment *controller.AssessmentController
	readTime   *controller.ReadTimeController
	grade      *controller.GradeController
	content    *controller.ContentController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig hands a freshly loaded config to every registered callback.
func (a *App) ReloadConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

// initRepositories falls back to process memory for the keyed stores when no
// redis is configured, which only suits a single instance.
func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, engine config.EngineConfig) *repositories {
	repos := &repositories{
		gradebook:   repository.NewGradebookRepository(db),
		content:     repository.NewCourseContentRepository(db),
		completion:  repository.NewResourceCompletionRepository(db),
		proficiency: repository.NewProficiencyRepository(db),
		streak:      repository.NewStreakRepository(db),
	}
	if rdb != nil {
		repos.attempts = repository.NewRedisAttemptStateStore(rdb, engine.AttemptTTL())
		repos.readTime = repository.NewRedisReadTimeStore(rdb, engine.ReadTimeRetention())
		repos.progress = repository.NewProgressCacheRepository(rdb)
	} else {
		repos.attempts = repository.NewMemoryAttemptStateStore()
		repos.readTime = repository.NewMemoryReadTimeStore()
		repos.progress = repository.NoopProgressCache{}
	}
	return repos
}

func (a *App) initServices(repos *repositories, locker lock.Locker, analytics service.Analytics) *services {
	identity := middleware.ContextIdentity{}
	s := &services{}

	s.streak = service.NewStreakService(repos.streak)
	s.proficiency = service.NewProficiencyService(repos.proficiency)
	s.banked = service.NewBankedXPService(repos.content, repos.readTime, repos.completion, repos.gradebook)
	s.attempt = service.NewAttemptService(repos.attempts, repos.gradebook, locker, identity, a.Tuning)
	s.readTime = service.NewReadTimeService(repos.readTime, repos.content, analytics, locker, identity, a.Tuning)
	s.gradebook = service.NewGradebookService(repos.gradebook, identity)
	s.completion = service.NewCompletionService(repos.completion, repos.content, identity)

	s.finalization = service.NewFinalizationService(
		repos.attempts,
		service.NewXPCalculator(a.Tuning),
		s.banked,
		repos.gradebook,
		analytics,
		identity,
		locker,
		repos.progress,
		s.streak,
		s.proficiency,
		a.Tuning,
	)
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		attempt:    controller.NewAttemptController(s.attempt),
		assessment: controller.NewAssessmentController(s.finalization),
		readTime:   controller.NewReadTimeController(s.readTime),
		grade:      controller.NewGradeController(s.gradebook, s.streak, s.proficiency),
		content:    controller.NewContentController(s.completion),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, cfg.ForceMigrate)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Tuning: service.NewEngineTuning(cfg.Engine),
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Host != "" {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.Redis = rdb
		locker = lock.NewRedisLocker(rdb)
	} else {
		logger.Log.Warn("Redis host is empty, using in-process attempt and read time stores")
	}

	publisher, err := event.NewEventPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		return nil, err
	}
	app.publisher = publisher

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("xp-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, err
		}
		app.tracer = tp
	}

	repos := app.initRepositories(db, app.Redis, cfg.Engine)
	services := app.initServices(repos, locker, publisher)
	controllers := app.initControllers(services)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		if err := app.Tuning.Update(newCfg.Engine); err != nil {
			logger.Log.Error("Rejected engine config reload", zap.Error(err))
			return
		}
		logger.Log.Info("Engine config reloaded",
			zap.Float64("firstAttemptBonus", newCfg.Engine.FirstAttemptBonus),
			zap.Float64("retryDecay", newCfg.Engine.RetryDecay),
			zap.Float64("minSecondsPerQuestion", newCfg.Engine.MinSecondsPerQuestion))
	})

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app, nil
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(ctx)

	logger.Log.Info("Server exiting")
}

// Close releases the broker connection, tracer and redis client.
func (a *App) Close(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Log.Error("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}
