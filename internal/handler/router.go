package handler

import (
	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Cfg      *config.Config
	Tokens   *auth.TokenService
	Clients  *service.ClientRegistry
	AuthSvc  *service.AuthService
	Recorder *service.Recorder
}

// NewRouter wires the middleware pipeline and the route/policy table.
// Middleware order matters: tagger first so even routing failures carry a
// correlation ID; recorder outside the error handler so the completed
// response (status, error envelope) is what gets logged.
func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	table := auth.NewPolicyTable()

	r.Use(middleware.CorrelationID())
	r.Use(middleware.Metrics())
	r.Use(middleware.RequestRecorder(d.Recorder))
	r.Use(middleware.ErrorHandler(d.Cfg.IsProduction()))
	r.Use(middleware.AuthGuard(table, d.Tokens, d.Clients))
	if d.Cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(d.Clients))
	}

	// register keeps the route and its access policy in one place.
	register := func(method, path string, policy auth.AccessPolicy, h gin.HandlerFunc) {
		table.Register(method, path, policy)
		r.Handle(method, path, h)
	}

	register("GET", "/health", auth.Public(), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "authgate"})
	})
	if d.Cfg.Metrics.Enabled {
		register("GET", d.Cfg.Metrics.Path, auth.Public(), gin.WrapH(promhttp.Handler()))
	}

	authHandler := NewAuthHandler(d.AuthSvc, d.Clients)
	register("POST", "/auth/login", auth.Public(), authHandler.Login)
	register("POST", "/auth/refresh", auth.RefreshOnly(), authHandler.Refresh)
	register("POST", "/auth/register-client", auth.Public(), authHandler.RegisterClient)
	register("GET", "/auth/test", auth.Authenticated(), authHandler.Test)
	register("GET", "/auth/public", auth.Public(), authHandler.Public)
	register("GET", "/auth/clients", auth.RequireAdmin(), authHandler.ListClients)
	register("DELETE", "/auth/clients/:uuid", auth.RequireSuperAdmin(), authHandler.DeactivateClient)

	mon := NewMonitoringHandler(d.Recorder)
	monPolicy := auth.RequireRoles(model.RoleAdmin, model.RoleSuperAdmin)
	register("GET", "/monitoring/stats", monPolicy, mon.Stats)
	register("GET", "/monitoring/memory", monPolicy, mon.Memory)
	register("GET", "/monitoring/requests", monPolicy, mon.Requests)
	register("GET", "/monitoring/request/:id", monPolicy, mon.Request)
	register("GET", "/monitoring/search/:id", monPolicy, mon.Search)
	register("GET", "/monitoring/clear", monPolicy, mon.Clear)
	register("GET", "/monitoring/csv/info", monPolicy, mon.CSVInfo)

	// Unmatched routes still produce the uniform envelope and a log entry
	// (unless the path is on the noise denylist).
	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.New(apperrors.ErrNotFound, "route not found", nil))
	})

	return r
}
