package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/strangerchat/internal/config"
	"github.com/vovakirdan/strangerchat/internal/log"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server exposing /health, /ws and /stats.
func NewServer(hub *Hub, cfg config.ServerConfig, logger *zerolog.Logger) *http.Server {
	logger = log.OrNop(logger)
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg.MessageRate, cfg.MessageBurst, logger)))
	router.GET("/stats", statsHandler(hub, logger))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func statsHandler(hub *Hub, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := hub.Stats(c.Request.Context())
		if err != nil {
			logger.Warn().Err(err).Msg("stats unavailable")
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
