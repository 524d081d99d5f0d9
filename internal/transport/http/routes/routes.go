package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/infra/config"
	"github.com/wasipo/harbor-sub000/internal/transport/http/handlers"
	"github.com/wasipo/harbor-sub000/internal/transport/http/middleware"
)

// Permission keys guarding the admin API when authorization is enforced.
const (
	PermissionUsersView        = "users.view"
	PermissionUsersManage      = "users.manage"
	PermissionRolesManage      = "roles.manage"
	PermissionCatalogManage    = "permissions.manage"
	PermissionCategoriesManage = "categories.manage"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Registration handlers.Registrar
	Login        handlers.Authenticator
	Auth         middleware.Authenticator
	Dashboard    interface {
		handlers.DashboardQuery
		middleware.PermissionChecker
	}
	Users       handlers.UserAdministrator
	Assignments handlers.RoleAssigner
	Categories  interface {
		handlers.CategoryAssigner
		handlers.CategoryCatalog
	}
	Roles       handlers.RoleCatalog
	Permissions handlers.PermissionCatalog
}

// Metrics is the domain metrics provider plus its registry.
type Metrics interface {
	handlers.DomainMetrics
	middleware.AuthorizationRecorder
	Registry() *prometheus.Registry
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	Services       ServiceSet
	Metrics        Metrics
	HTTPMetrics    *middleware.HTTPMetrics
	TracerProvider trace.TracerProvider
	AttemptCounter middleware.AttemptCounter
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(deps.TracerProvider))
	r.Use(middleware.Correlation())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if len(deps.Config.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	svc := deps.Services

	var domainMetrics handlers.DomainMetrics
	var recorder middleware.AuthorizationRecorder
	if deps.Metrics != nil {
		domainMetrics = deps.Metrics
		recorder = deps.Metrics
	}

	authHandler := handlers.NewAuthHandler(svc.Registration, svc.Login, domainMetrics)
	authHandler.RegisterRoutes(api.Group("/auth"), buildLoginMiddlewares(deps)...)

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(svc.Auth))

	// allow returns the permission gate for key, or nothing when authorization is not enforced.
	allow := func(key string) []gin.HandlerFunc {
		if !deps.Config.Authorization.Enforce {
			return nil
		}
		return []gin.HandlerFunc{middleware.RequirePermission(svc.Dashboard, recorder, key)}
	}
	route := func(group *gin.RouterGroup, method, path, key string, h gin.HandlerFunc) {
		group.Handle(method, path, append(allow(key), h)...)
	}

	dashboardHandler := handlers.NewDashboardHandler(svc.Dashboard)
	authed.GET("/dashboard", dashboardHandler.Show)

	userHandler := handlers.NewUserHandler(svc.Users, svc.Assignments, svc.Categories, domainMetrics)
	users := authed.Group("/users/:id")
	route(users, http.MethodGet, "", PermissionUsersView, userHandler.Get)
	route(users, http.MethodPatch, "", PermissionUsersManage, userHandler.ChangeProfile)
	route(users, http.MethodDelete, "", PermissionUsersManage, userHandler.Delete)
	route(users, http.MethodPost, "/status", PermissionUsersManage, userHandler.ChangeStatus)
	route(users, http.MethodGet, "/roles", PermissionUsersView, userHandler.ListRoles)
	route(users, http.MethodPost, "/roles", PermissionRolesManage, userHandler.AssignRole)
	route(users, http.MethodPut, "/roles", PermissionRolesManage, userHandler.AssignRoles)
	route(users, http.MethodDelete, "/roles", PermissionRolesManage, userHandler.RevokeAllRoles)
	route(users, http.MethodDelete, "/roles/:roleId", PermissionRolesManage, userHandler.RevokeRole)
	route(users, http.MethodGet, "/categories", PermissionUsersView, userHandler.ListCategories)
	route(users, http.MethodPut, "/categories", PermissionUsersManage, userHandler.AssignCategories)
	route(users, http.MethodDelete, "/categories/:categoryId", PermissionUsersManage, userHandler.ExpireCategory)

	roleHandler := handlers.NewRoleHandler(svc.Roles)
	roles := authed.Group("/roles")
	route(roles, http.MethodGet, "", PermissionUsersView, roleHandler.List)
	route(roles, http.MethodGet, "/:id", PermissionUsersView, roleHandler.Get)
	route(roles, http.MethodPost, "", PermissionRolesManage, roleHandler.Create)
	route(roles, http.MethodPatch, "/:id", PermissionRolesManage, roleHandler.Rename)
	route(roles, http.MethodDelete, "/:id", PermissionRolesManage, roleHandler.Delete)

	permissionHandler := handlers.NewPermissionHandler(svc.Permissions)
	permissions := authed.Group("/permissions")
	route(permissions, http.MethodGet, "", PermissionUsersView, permissionHandler.List)
	route(permissions, http.MethodGet, "/:key", PermissionUsersView, permissionHandler.Get)
	route(permissions, http.MethodPost, "", PermissionCatalogManage, permissionHandler.Create)

	categoryHandler := handlers.NewCategoryHandler(svc.Categories)
	route(authed.Group("/categories"), http.MethodPost, "", PermissionCategoriesManage, categoryHandler.Create)

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	limits := deps.Config.RateLimit
	if deps.AttemptCounter == nil || limits.LoginMaxAttempts <= 0 {
		return nil
	}

	return []gin.HandlerFunc{middleware.RateLimit(deps.AttemptCounter, middleware.RateLimitRule{
		Name:       "auth_login_ip",
		Limit:      limits.LoginMaxAttempts,
		Window:     limits.Window,
		Identifier: middleware.ClientIPIdentifier(),
	}, deps.Logger)}
}
