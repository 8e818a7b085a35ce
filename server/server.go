package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PixelPet-dev/xlayerslot/auth"
	"github.com/PixelPet-dev/xlayerslot/config"
	"github.com/PixelPet-dev/xlayerslot/middleware"
	"github.com/PixelPet-dev/xlayerslot/presentation"
)

// App is the HTTP application: gin engine, routes, and lifecycle.
type App struct {
	engine      *gin.Engine
	config      *config.Config
	logger      zerolog.Logger
	svc         *GameService
	gameHandler *GameHandler
	feedHandler *FeedHandler
	poller      *BalancePoller
	httpServer  *http.Server
	onShutdown  []func()
}

// Options wires the application.
type Options struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Service *GameService
	Feed    *presentation.Feed
	Poller  *BalancePoller
}

// New builds the application with handlers attached.
func New(opts Options) *App {
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		engine: gin.New(),
		config: opts.Config,
		logger: opts.Logger,
		svc:    opts.Service,
		poller: opts.Poller,
	}
	app.gameHandler = NewGameHandler(app, opts.Service)
	app.feedHandler = NewFeedHandler(app, opts.Feed)
	return app
}

// UseCommonMiddlewares installs recovery, tracing, logging, timeout,
// and optionally CORS. Recovery must run outermost.
func (a *App) UseCommonMiddlewares() {
	a.engine.Use(middleware.Recovery(a.logger))
	a.engine.Use(middleware.TraceID())
	a.engine.Use(middleware.Logging(a.logger))
	a.engine.Use(middleware.Timeout(a.config.Server.WriteTimeout))
	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// RegisterRoutes wires the API surface. Session routes are open; game
// and user routes require the session token the connect flow mints.
func (a *App) RegisterRoutes() {
	a.engine.GET("/health", a.healthCheck)
	a.engine.GET("/api/health", a.healthCheck)

	sessionRoutes := a.engine.Group("/api/session")
	{
		sessionRoutes.POST("/connect", a.gameHandler.Connect)
		sessionRoutes.GET("", a.gameHandler.Session)
		sessionRoutes.POST("/disconnect", a.gameHandler.Disconnect)
	}

	// Config and preview are readable without a session.
	a.engine.GET("/api/game/config", a.gameHandler.GetConfig)
	a.engine.GET("/api/game/simulate", a.gameHandler.Simulate)

	authed := a.engine.Group("/api")
	authed.Use(auth.Middleware(a.config.JWT.Secret, a.logger))
	{
		authed.POST("/game/play", a.gameHandler.Play)
		authed.GET("/game/history", a.gameHandler.GetHistory)
		authed.GET("/game/feed", a.feedHandler.StreamSSE)
		authed.GET("/game/feed/ws", a.feedHandler.StreamWebSocket)
		authed.GET("/user", a.gameHandler.GetProfile)
		authed.POST("/user/register", a.gameHandler.Register)
		authed.GET("/user/balance", a.gameHandler.GetBalance)
		authed.POST("/rewards/claim", a.gameHandler.Claim)
	}

	a.logger.Info().Msg("routes registered")
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   a.config.Environment,
		"chain_id":  a.config.Network.ChainID,
	})
}

// OnShutdown registers a function to run during shutdown.
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Router returns the gin engine, mainly for tests.
func (a *App) Router() *gin.Engine {
	return a.engine
}

// Run starts the server and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	if a.poller != nil {
		a.poller.Start()
	}

	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return a.shutdown()
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.poller != nil {
		a.poller.Stop()
	}
	for _, fn := range a.onShutdown {
		fn()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error().Err(err).Msg("error during server shutdown")
		return err
	}
	a.logger.Info().Msg("server shutdown complete")
	return nil
}
