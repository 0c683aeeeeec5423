package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/randomtoy/elo-chess-backend/internal/ports"
)

// Options configures the server middleware. A nil RateLimiter disables
// rate limiting; empty AllowOrigins allows any origin.
type Options struct {
	Logger       *zap.Logger
	RateLimiter  ports.RateLimiter
	AllowOrigins []string
}

// New constructs and returns a configured Echo instance.
func New(h *Handlers, opts Options) *echo.Echo {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Client-Token"},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if opts.RateLimiter != nil {
		e.Use(rateLimit(opts.RateLimiter))
	}

	e.GET("/api/v1/healthz", h.handleHealthz)
	e.POST("/api/v1/games", h.handleCreateGame)
	e.GET("/api/v1/games/:game_id", h.handleGetGame)
	e.POST("/api/v1/games/:game_id/moves", h.handleApplyMove)
	e.POST("/api/v1/games/:game_id/claims", h.handleSubmitClaim)
	e.POST("/api/v1/games/:game_id/outcome", h.handleSignalOutcome)
	e.POST("/api/v1/games/:game_id/settlement", h.handleSettle)
	e.GET("/api/v1/players/:player_id/rating", h.handleGetRating)
	e.PUT("/api/v1/players/:player_id/k-factor", h.handleSetKFactor)

	return e
}

func rateLimit(rl ports.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP(), c.Request().Header.Get("X-Client-Token")) {
				return writeErr(c, ErrRateLimited)
			}
			return next(c)
		}
	}
}
