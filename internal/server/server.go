package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/paracket/paracket/internal/adapter"
	"github.com/paracket/paracket/internal/config"
	"github.com/paracket/paracket/internal/publisher"
	"github.com/paracket/paracket/internal/publisher/mastodon"
	"github.com/paracket/paracket/internal/publisher/reddit"
	"github.com/paracket/paracket/internal/publisher/twitter"
	"github.com/paracket/paracket/internal/service"
	"github.com/paracket/paracket/internal/store"
)

type Server struct {
	Config *config.Config
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	Store      *store.Store
	Dispatcher *service.Dispatcher
	Scheduler  *service.Scheduler
	Adapter    *adapter.Adapter
	Auth       *service.AuthService
	Registry   *prometheus.Registry
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	lockStale, err := time.ParseDuration(cfg.Store.LockStaleAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid lock_stale_after: %w", err)
	}
	publishTimeout, err := time.ParseDuration(cfg.Scheduler.PublishTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid publish_timeout: %w", err)
	}

	st, err := store.New(cfg.Store.Dir, logger, store.WithLockStaleAfter(lockStale))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := service.NewMetrics(registry)

	manager := publisher.NewManager(logger)
	for _, pub := range []publisher.Publisher{
		twitter.New(logger),
		mastodon.New(logger),
		reddit.New(logger),
	} {
		if err := manager.Register(pub); err != nil {
			return nil, fmt.Errorf("failed to register publisher: %w", err)
		}
	}

	dispatcher := service.NewDispatcher(
		st,
		manager,
		service.NewCredentialResolver(cfg.Platforms),
		metrics,
		logger,
		service.WithPublishTimeout(publishTimeout),
	)

	scheduler := service.NewScheduler(&cfg.Scheduler, logger, dispatcher)

	// The adapter is only available when a generation key is configured; the
	// rest of the management API works without it.
	var contentAdapter *adapter.Adapter
	if cfg.Adapter.OpenAIAPIKey != "" {
		gen, err := adapter.NewOpenAIGenerator(cfg.Adapter.OpenAIAPIKey, cfg.Adapter.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize adapter: %w", err)
		}
		contentAdapter = adapter.New(gen, logger)
	}

	srv := &Server{
		Config:     cfg,
		Router:     gin.New(),
		Logger:     logger,
		Store:      st,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Adapter:    contentAdapter,
		Registry:   registry,
	}
	if cfg.Auth.Enabled {
		srv.Auth = service.NewAuthService(logger, cfg.Auth.TOTPSecret)
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	s.Router.Use(gin.Recovery())

	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	if s.Auth != nil {
		s.Router.Use(s.Auth.Middleware())
	}
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	s.Router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))

	api := s.Router.Group("/api/v1")
	{
		posts := api.Group("/posts")
		{
			posts.GET("", s.handleListPosts)
			posts.POST("", s.handleCreatePost)
			posts.GET("/:id", s.handleGetPost)
			posts.DELETE("/:id", s.handleDeletePost)
			posts.PATCH("/:id/schedule", s.handleEditSchedule)
			posts.PATCH("/:id/content", s.handleEditContent)
			posts.POST("/:id/activate", s.handleActivate)
			posts.POST("/:id/deactivate", s.handleDeactivate)
		}

		api.POST("/adapt", s.handleAdapt)
		api.POST("/scan", s.handleScan)
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
