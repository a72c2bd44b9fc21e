// Package server wires the HTTP surface: session routes, workspace actions,
// and the synchronization endpoint.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	"github.com/tidehub/workdesk/internal/auth/session"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/directory"
	"github.com/tidehub/workdesk/internal/observability"
	"github.com/tidehub/workdesk/internal/observability/logger"
	"github.com/tidehub/workdesk/internal/observability/metrics"
	"github.com/tidehub/workdesk/internal/observability/tracing"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
	"github.com/tidehub/workdesk/internal/orgsync"
	"github.com/tidehub/workdesk/internal/workspace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(Run),
)

// Server carries the handler dependencies and the gin engine.
type Server struct {
	cfg        config.Config
	engine     *gin.Engine
	sessions   *session.Manager
	auth       authdomain.Service
	orgs       orgdomain.Service
	dir        directory.Service
	reconciler *orgsync.Reconciler
	actions    *workspace.Actions
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

type Params struct {
	fx.In

	Config     config.Config
	ObsConfig  observability.Config
	Sessions   *session.Manager
	Auth       authdomain.Service
	Orgs       orgdomain.Service
	Directory  directory.Service
	Reconciler *orgsync.Reconciler
	Actions    *workspace.Actions
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

func New(p Params) *Server {
	s := &Server{
		cfg:        p.Config,
		sessions:   p.Sessions,
		auth:       p.Auth,
		orgs:       p.Orgs,
		dir:        p.Directory,
		reconciler: p.Reconciler,
		actions:    p.Actions,
		metrics:    p.Metrics,
		logger:     p.Logger.Named("server"),
	}
	s.engine = s.newEngine(p.ObsConfig)
	return s
}

func (s *Server) newEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: ClassifyError,
	}))
	engine.Use(tracing.GinMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.registerRoutes(engine)
	return engine
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	authRequired := AuthRequired(s.sessions, s.dir)

	// Sign-in lives here only when the directory is embedded; hosted mode
	// delegates the whole authentication surface to the remote service.
	if !s.cfg.IsHosted() {
		auth := engine.Group("/auth")
		auth.POST("/sign-up", s.handleSignUp)
		auth.POST("/sign-in", s.handleSignIn)
		auth.POST("/sign-out", s.handleSignOut)
		auth.GET("/me", authRequired, s.handleMe)
	}

	api := engine.Group("/api", authRequired)

	api.GET("/me/organizations", s.handleListMyOrganizations)
	api.POST("/session/activate", s.handleActivate)
	api.POST("/session/sync", s.handleSync)

	orgs := api.Group("/organizations")
	orgs.GET("/:id", s.handleGetOrganization)
	orgs.PATCH("/:id", s.handleUpdateOrganization)
	orgs.GET("/:id/verify-admin", s.handleVerifyAdmin)
	orgs.GET("/:id/members", s.handleListMembers)
	orgs.POST("/:id/invitations", s.handleCreateInvitation)

	if !s.cfg.IsHosted() {
		orgs.POST("", s.handleCreateOrganization)
		orgs.GET("", s.handleResolveOrganizationSlug)
		orgs.GET("/:id/invitations", s.handleListInvitations)
		api.POST("/invitations/accept", s.handleAcceptInvitation)
		api.POST("/invitations/:id/revoke", s.handleRevokeInvitation)
	}
}

// Run starts the HTTP listener under the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.logger.Info("http server starting",
				zap.String("addr", s.cfg.ListenAddr),
				zap.String("mode", s.cfg.Mode),
			)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("http server shutting down")
			return srv.Shutdown(ctx)
		},
	})
}
