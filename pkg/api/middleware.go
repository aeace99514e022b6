package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/aquabridge/pkg/api/types"
)

const authRealm = "Aqualogic"

// Probes and long-lived streams are logged at debug.
var quietPaths = map[string]bool{
	"/health":     true,
	"/metrics":    true,
	"/api/health": true,
	"/api/events": true,
	"/api/ws":     true,
}

func setupMiddleware(r *gin.Engine) {
	r.Use(recoverer())
	r.Use(requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Mcp-Session-Id"},
		ExposeHeaders: []string{"Content-Length", "Mcp-Session-Id"},
		MaxAge:        12 * time.Hour,
	}))
}

// recoverer turns handler panics into a logged 500 with the usual error body.
func recoverer() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, types.ErrorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		})
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		case quietPaths[path]:
			level = zerolog.DebugLevel
		}

		ev := log.WithLevel(level).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if q := c.Request.URL.RawQuery; q != "" {
			ev = ev.Str("query", q)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

// basicAuth guards the UI with a single account and logs rejected
// attempts.
func basicAuth(user, pass string) gin.HandlerFunc {
	check := gin.BasicAuthForRealm(gin.Accounts{user: pass}, authRealm)
	return func(c *gin.Context) {
		check(c)
		if c.IsAborted() {
			log.Warn().
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("Rejected HTTP credentials")
		}
	}
}
