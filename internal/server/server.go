package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/retailops/incidentd/internal/audit"
	auditdomain "github.com/retailops/incidentd/internal/audit/domain"
	"github.com/retailops/incidentd/internal/config"
	"github.com/retailops/incidentd/internal/incident"
	incidentdomain "github.com/retailops/incidentd/internal/incident/domain"
	"github.com/retailops/incidentd/internal/observability"
	obsmiddleware "github.com/retailops/incidentd/internal/observability/logger"
	obsmetrics "github.com/retailops/incidentd/internal/observability/metrics"
	obstracing "github.com/retailops/incidentd/internal/observability/tracing"
	"github.com/retailops/incidentd/internal/reference"
	referencedomain "github.com/retailops/incidentd/internal/reference/domain"
	"github.com/retailops/incidentd/internal/scheduler"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	reference.Module,
	incident.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	incidentSvc incidentdomain.Service
	auditSvc    auditdomain.Service
	refrepo     referencedomain.Repository
	obsMetrics  *obsmetrics.Metrics

	scheduler *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	IncidentSvc incidentdomain.Service
	AuditSvc    auditdomain.Service
	Refrepo     referencedomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`

	Scheduler *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		incidentSvc: p.IncidentSvc,
		auditSvc:    p.AuditSvc,
		refrepo:     p.Refrepo,
		obsMetrics:  p.ObsMetrics,
		scheduler:   p.Scheduler,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Reference data --------
	api.GET("/stores", s.ListStores)
	api.GET("/stores/:id/departments", s.ListStoreDepartments)
	api.GET("/categories", s.ListCategories)
	api.GET("/categories/:id/subcategories", s.ListCategorySubcategories)

	// -------- Incidents --------
	// Lookup by number and the summary live outside /incidents because
	// gin rejects static segments beside the :id parameter.
	api.GET("/incidents", s.ListIncidents)
	api.GET("/incidents/:id", s.GetIncidentByID)
	api.GET("/incident-numbers/:number", s.GetIncidentByNumber)
	api.GET("/incident-summary", s.GetIncidentSummary)
	api.GET("/incidents/:id/history", s.ListIncidentHistory)
	api.GET("/incidents/:id/comments", s.ListIncidentComments)

	api.POST("/incidents", s.ActorRequired(), s.CreateIncident)
	api.POST("/incidents/:id/transition", s.ActorRequired(), s.TransitionIncident)
	api.POST("/incidents/:id/assign", s.ActorRequired(), s.AssignIncident)
	api.POST("/incidents/:id/comments", s.ActorRequired(), s.AddIncidentComment)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}
