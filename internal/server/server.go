package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
	billingdomain "github.com/smallbiznis/dairy/internal/billing/domain"
	billingservice "github.com/smallbiznis/dairy/internal/billing/service"
	"github.com/smallbiznis/dairy/internal/config"
	obslogger "github.com/smallbiznis/dairy/internal/observability/logger"
	"github.com/smallbiznis/dairy/internal/scheduler"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module serves the ops surface: health checks, prometheus and manual job runs.
var Module = fx.Module("http.ops",
	fx.Provide(
		func(s *scheduler.Scheduler) JobRunner { return s },
		NewServer,
	),
	fx.Invoke(run),
)

// JobRunner triggers one scheduler job outside its calendar day.
type JobRunner interface {
	RunJob(ctx context.Context, name string, force bool) error
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Jobs       JobRunner
	BillingSvc billingdomain.Service
	Documents  billingdomain.DocumentGenerator `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	log        *zap.Logger
	jobs       JobRunner
	billingSvc billingdomain.Service
	documents  billingdomain.DocumentGenerator
}

func NewServer(p Params) *Server {
	s := &Server{
		db:         p.DB,
		log:        p.Log.Named("http.ops"),
		jobs:       p.Jobs,
		billingSvc: p.BillingSvc,
		documents:  p.Documents,
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", s.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/jobs/:name/run", s.RunJob)
	r.GET("/accounts/:id/balance", s.Balance)
	r.GET("/accounts/:id/bills/preview", s.PreviewBill)
	return r
}

func (s *Server) Ready(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) RunJob(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	force, _ := strconv.ParseBool(c.Query("force"))

	// the run outlives a dropped client connection
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.jobs.RunJob(ctx, name, force); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": name, "force": force, "status": "completed"})
}

func (s *Server) Balance(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	balance, err := s.billingSvc.Balance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id.String(), "balance": balance})
}

// PreviewBill returns the bill an account would receive for ?period=YYYY-MM.
// With ?format=pdf the rendered document is streamed instead.
func (s *Server) PreviewBill(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		return
	}
	period, err := parsePeriod(c.Query("period"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	data, err := s.billingSvc.Preview(ctx, id, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if c.Query("format") != "pdf" {
		c.JSON(http.StatusOK, data)
		return
	}
	if s.documents == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	doc, err := s.documents.Render(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	name := billingservice.DocumentName(data.Account.Name, period)
	c.Header("Content-Disposition", `inline; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

func accountID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}

func parsePeriod(raw string) (billdomain.Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return billdomain.Period{}, errors.Join(ErrInvalidRequest, billdomain.ErrInvalidPeriod)
	}
	return billdomain.PeriodOf(t), nil
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	if !cfg.OpsEnabled {
		log.Info("ops server disabled")
		return
	}
	srv := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("ops server stopped", zap.Error(err))
				}
			}()
			log.Info("ops server listening", zap.String("addr", cfg.OpsAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
