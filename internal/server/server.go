package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/observability"
	obsmiddleware "github.com/alimia7/achatons/internal/observability/logger"
	obsmetrics "github.com/alimia7/achatons/internal/observability/metrics"
	obstracing "github.com/alimia7/achatons/internal/observability/tracing"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	participationdomain "github.com/alimia7/achatons/internal/participation/domain"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/alimia7/achatons/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine           *gin.Engine
	offerSvc         offerdomain.Service
	priceTierSvc     pricetierdomain.Service
	participationSvc participationdomain.Service
	submitLimiter    *ratelimit.SubmitLimiter
	httpMetrics      *obsmetrics.HTTPMetrics
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	OfferSvc         offerdomain.Service
	PriceTierSvc     pricetierdomain.Service
	ParticipationSvc participationdomain.Service
	SubmitLimiter    *ratelimit.SubmitLimiter `optional:"true"`
	HTTPMetrics      *obsmetrics.HTTPMetrics  `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		offerSvc:         p.OfferSvc,
		priceTierSvc:     p.PriceTierSvc,
		participationSvc: p.ParticipationSvc,
		submitLimiter:    p.SubmitLimiter,
		httpMetrics:      p.HTTPMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Offers --------
	api.POST("/offers", s.CreateOffer)
	api.GET("/offers", s.ListOffers)
	api.GET("/offers/:id", s.GetOffer)
	api.PUT("/offers/:id/tiers", s.ReplaceOfferTiers)
	api.POST("/offers/:id/recompute", s.RecomputeOffer)

	// -------- Participations --------
	api.POST("/offers/:id/participations", s.SubmitRateLimit(), s.SubmitParticipation)
	api.GET("/offers/:id/participations", s.ListParticipations)
	api.POST("/participations/:id/validate", s.ValidateParticipation)
	api.POST("/participations/:id/cancel", s.CancelParticipation)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
