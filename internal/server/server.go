package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aman-churiwal/quota-gateway/internal/config"
	"github.com/aman-churiwal/quota-gateway/internal/handler"
	"github.com/aman-churiwal/quota-gateway/internal/metrics"
	"github.com/aman-churiwal/quota-gateway/internal/middleware"
	"github.com/aman-churiwal/quota-gateway/internal/ratelimit"
	"github.com/aman-churiwal/quota-gateway/internal/repository"
	"github.com/aman-churiwal/quota-gateway/internal/service"
	"github.com/aman-churiwal/quota-gateway/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

type Server struct {
	router        *gin.Engine
	config        *config.Config
	log           *zap.Logger
	metrics       *metrics.Metrics
	quotas        *ratelimit.QuotaTable
	limiter       ratelimit.Limiter
	authService   *service.AuthService
	authHandler   *handler.AuthHandler
	chatHandler   *handler.ChatHandler
	systemHandler *handler.SystemHandler
	requestLogger *middleware.RequestLogger
	httpServer    *http.Server
}

type options struct {
	clock   func() time.Time
	logSink middleware.LogSink
}

type Option func(*options)

// WithClock replaces time.Now for quota windows
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRequestLogSink records requests into sink instead of postgres
func WithRequestLogSink(sink middleware.LogSink) Option {
	return func(o *options) {
		o.logSink = sink
	}
}

// New wires the gateway. postgres may be nil, in which case requests are not
// recorded unless a sink is passed with WithRequestLogSink.
func New(cfg *config.Config, log *zap.Logger, postgres *storage.Postgres, opts ...Option) (*Server, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tiers, err := cfg.RateLimitTiers()
	if err != nil {
		return nil, err
	}
	users, err := cfg.DirectoryUsers()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	m := metrics.New()

	// Identity
	userRepo := repository.NewUserRepository(users)
	tokenRepo := repository.NewTokenRepository()
	authService := service.NewAuthService(userRepo, tokenRepo, log)

	// Quotas
	quotas := ratelimit.NewQuotaTable()
	limiter := ratelimit.NewFixedWindow(quotas, ratelimit.NewPolicy(tiers), ratelimit.WithClock(o.clock))
	m.TrackQuotaWindows(quotas.Len)
	quotas.StartSweeper(cfg.RateLimit.CleanupInterval, o.clock, m.ObserveSweep)

	var database handler.Pinger
	if postgres != nil {
		database = postgres
		if o.logSink == nil {
			o.logSink = repository.NewRequestLogRepository(postgres)
		}
	}

	s := &Server{
		router:        router,
		config:        cfg,
		log:           log,
		metrics:       m,
		quotas:        quotas,
		limiter:       limiter,
		authService:   authService,
		authHandler:   handler.NewAuthHandler(authService, m, log),
		chatHandler:   handler.NewChatHandler(authService, limiter, log),
		systemHandler: handler.NewSystemHandler(database, log),
	}

	s.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if o.logSink != nil {
		s.requestLogger = middleware.NewRequestLogger(o.logSink, middleware.RequestLoggerConfig{
			BufferSize:    cfg.Database.LogBufferSize,
			BatchSize:     cfg.Database.BatchSize,
			FlushInterval: cfg.Database.FlushInterval,
		}, log)
	}

	s.setupMiddleware()
	s.setupRoutes()

	log.Info("gateway initialized",
		zap.Int("users", userRepo.Count()),
		zap.Any("tiers", tiers),
		zap.Bool("request_log", s.requestLogger != nil),
	)

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.log))
	if s.requestLogger != nil {
		s.router.Use(s.requestLogger.Middleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.systemHandler.Health)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group(s.config.Server.RoutePrefix)
	{
		api.POST("/login", s.authHandler.Login)
		api.POST("/chat", middleware.RateLimit(s.authService, s.limiter, s.metrics, s.log, s.chatHandler.Chat))
		api.GET("/status", s.chatHandler.Status)
	}
}

func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called
func (s *Server) Serve(ln net.Listener) error {
	if s.config.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.Server.MaxConnections)
	}

	s.log.Info("starting quota gateway",
		zap.String("addr", ln.Addr().String()),
		zap.String("environment", s.config.Server.Environment),
		zap.Int("max_connections", s.config.Server.MaxConnections),
	)

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, then flushes the request log and stops the sweeper
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	err := s.httpServer.Shutdown(ctx)

	if s.requestLogger != nil {
		s.requestLogger.Close()
	}
	s.quotas.Close()

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}
