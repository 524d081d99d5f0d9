package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/infra/config"
	"github.com/wasipo/harbor-sub000/internal/infra/database"
	kafkainfra "github.com/wasipo/harbor-sub000/internal/infra/kafka"
	"github.com/wasipo/harbor-sub000/internal/infra/logger"
	redisinfra "github.com/wasipo/harbor-sub000/internal/infra/redis"
	"github.com/wasipo/harbor-sub000/internal/infra/security"
	"github.com/wasipo/harbor-sub000/internal/infra/telemetry"
	postgresrepo "github.com/wasipo/harbor-sub000/internal/repository/postgres"
	redisrepo "github.com/wasipo/harbor-sub000/internal/repository/redis"
	transportgrpc "github.com/wasipo/harbor-sub000/internal/transport/grpc"
	grpcinterceptors "github.com/wasipo/harbor-sub000/internal/transport/grpc/interceptors"
	"github.com/wasipo/harbor-sub000/internal/transport/http/middleware"
	"github.com/wasipo/harbor-sub000/internal/transport/http/routes"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

const (
	healthCheckInterval = 15 * time.Second
	shutdownGrace       = 10 * time.Second
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

// New wires every dependency. When a step fails, whatever was already started is released.
func New(ctx context.Context, cfg *config.AppConfig) (_ *Application, err error) {
	log, err := logger.New(cfg.App.Env, logger.WithLevel(cfg.App.LogLevel), logger.WithService(cfg.App.Name))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{
		cfg:      cfg,
		logger:   log,
		grpcAddr: fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tracer

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	hasher, err := security.NewHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	sessions, err := security.NewSessionManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init session manager: %w", err)
	}
	passwordPolicy := security.NewPasswordPolicy(cfg.Password, cfg.App.Name, "rbac", "admin")

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient
	permissionCache := redisrepo.NewPermissionCache(redisClient.Client(), cfg.Redis.PermissionCachePrefix)
	attemptCounter := redisrepo.NewAttemptCounter(redisClient.Client(), cfg.RateLimit.KeyPrefix)

	repos := postgresrepo.NewRepositories(pool, hasher, log)

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log, kafkainfra.WithErrorHook(metrics.EventPublishFailure))
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	authService := usecase.NewAuthService(repos.Users, hasher, sessions, log)
	registrationService := usecase.NewRegistrationService(repos.Users, passwordPolicy, eventPublisher, log)
	userService := usecase.NewUserService(repos.Users, repos.Roles, repos.Tx, permissionCache, passwordPolicy, log)
	roleService := usecase.NewRoleService(repos.Roles, repos.Permissions, repos.RoleAssignments, repos.Tx, permissionCache, log)
	permissionService := usecase.NewPermissionService(repos.Permissions)
	assignmentService := usecase.NewRoleAssignmentService(repos.Users, repos.Roles, repos.RoleAssignments, repos.Tx, permissionCache, log)
	categoryService := usecase.NewCategoryService(repos.Users, repos.Categories, repos.CategoryAssignments, repos.Permissions, repos.Tx, permissionCache, log)
	dashboardService := usecase.NewDashboardQueryService(repos.Users, repos.Roles, repos.Categories, repos.CategoryAssignments, repos.Permissions, permissionCache, cfg.Dashboard.CacheTTL, log)

	httpMetrics := middleware.NewHTTPMetrics(metrics.Registry())
	grpcMetrics := grpcinterceptors.NewGRPCMetrics(metrics.Registry())

	grpcSrv := transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Logger:         log,
		Metrics:        grpcMetrics,
		TracerProvider: tracer.TracerProvider(),
		Checks: map[string]transportgrpc.Check{
			"postgres": pool.Ping,
			"redis":    redisClient.HealthCheck,
		},
	})

	engine := routes.Register(routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		Metrics:        metrics,
		HTTPMetrics:    httpMetrics,
		TracerProvider: tracer.TracerProvider(),
		AttemptCounter: attemptCounter,
		Database:       pool,
		Cache:          redisClient,
		Services: routes.ServiceSet{
			Registration: registrationService,
			Login:        authService,
			Auth:         authService,
			Dashboard:    dashboardService,
			Users:        userService,
			Assignments:  assignmentService,
			Categories:   categoryService,
			Roles:        roleService,
			Permissions:  permissionService,
		},
	})

	a.engine = engine
	a.producer = producer
	a.grpcServer = grpcSrv
	return a, nil
}

// Run serves HTTP and gRPC until ctx is cancelled or either server fails,
// then drains both and releases dependencies in reverse start order.
func (a *Application) Run(ctx context.Context) error {
	defer a.release()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcListener net.Listener
	if a.grpcServer != nil && a.grpcAddr != "" {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcListener = lis
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info("http server listening",
			zap.String("address", srv.Addr),
			zap.String("env", a.cfg.App.Env),
			zap.Bool("authorization_enforced", a.cfg.Authorization.Enforce),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcListener != nil {
		group.Go(func() error {
			a.logger.Info("grpc server listening", zap.String("address", a.grpcAddr))
			if err := a.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			a.grpcServer.WatchHealth(gctx, healthCheckInterval)
			return nil
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if a.grpcServer != nil {
			a.grpcServer.Shutdown(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return group.Wait()
}

// release closes dependencies that outlive the servers. Errors are logged, not returned.
func (a *Application) release() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
