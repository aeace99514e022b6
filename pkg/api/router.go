package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/aquabridge/pkg/api/handlers"
	"github.com/urmzd/aquabridge/pkg/db"
	"github.com/urmzd/aquabridge/pkg/schema"
)

const shutdownTimeout = 5 * time.Second

// Bridge is everything the HTTP surface needs from the running bridge
type Bridge interface {
	handlers.StatusProvider
	handlers.KeyPresser
	handlers.EntityController
	ActiveMessages() []string
}

// Option configures the router
type Option func(*Router)

// WithHistory serves system message and keypress history from database
func WithHistory(database *db.DB) Option {
	return func(r *Router) {
		r.messages = database.Messages()
		r.keylog = database.Keypresses()
	}
}

// WithMetrics mounts a Prometheus handler at /metrics
func WithMetrics(h http.Handler) Option {
	return func(r *Router) { r.metrics = h }
}

// WithMCP mounts an MCP streamable HTTP handler at /mcp
func WithMCP(h http.Handler) Option {
	return func(r *Router) { r.mcp = h }
}

// WithBasicAuth protects everything except /health and /metrics
func WithBasicAuth(user, pass string) Option {
	return func(r *Router) {
		r.user = user
		r.pass = pass
	}
}

// Router holds the Gin engine and dependencies
type Router struct {
	engine    *gin.Engine
	bridge    Bridge
	display   handlers.DisplaySource
	validator *schema.Validator

	messages db.MessageStore
	keylog   db.KeyLog
	metrics  http.Handler
	mcp      http.Handler

	user string
	pass string
}

// NewRouter creates a new API router
func NewRouter(b Bridge, display handlers.DisplaySource, opts ...Option) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	setupMiddleware(engine)

	router := &Router{
		engine:    engine,
		bridge:    b,
		display:   display,
		validator: schema.NewValidator(),
	}
	for _, opt := range opts {
		opt(router)
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all routes
func (r *Router) setupRoutes() {
	// Unauthenticated probes
	healthHandler := handlers.NewHealthHandler(r.bridge)
	r.engine.GET("/health", healthHandler.Health)
	if r.metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.metrics))
	}

	protected := r.engine.Group("/")
	if r.user != "" {
		protected.Use(basicAuth(r.user, r.pass))
	}

	// Web UI and Swagger UI
	protected.GET("/", handlers.Index)
	protected.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	protected.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	if r.mcp != nil {
		protected.Any("/mcp", gin.WrapH(r.mcp))
	}

	api := protected.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		// Display
		displayHandler := handlers.NewDisplayHandler(r.display)
		api.GET("/display", displayHandler.GetDisplay)
		api.GET("/events", displayHandler.Events)
		api.GET("/ws", displayHandler.WebSocket)

		// Keypad
		keyHandler := handlers.NewKeyHandler(r.bridge)
		api.GET("/keys", keyHandler.ListKeys)
		api.POST("/key/:name", keyHandler.PressKey)

		// State and history
		stateHandler := handlers.NewStateHandler(r.bridge, r.messages, r.keylog)
		api.GET("/state", stateHandler.GetState)
		api.GET("/messages", stateHandler.Messages)
		api.GET("/keypresses", stateHandler.Keypresses)

		// Entities
		entityHandler := handlers.NewEntityHandler(r.bridge, r.validator)
		entities := api.Group("/entities")
		{
			entities.GET("", entityHandler.ListEntities)
			entities.POST("/:key", entityHandler.SetEntity)
		}
	}
}

// Handler returns the engine as an http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run serves HTTP on addr until ctx is done
func (r *Router) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: r.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
