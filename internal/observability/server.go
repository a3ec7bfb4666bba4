package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/luxbridge/luxbridge/internal/auth"
	"github.com/luxbridge/luxbridge/internal/config"
)

// StatusFunc reports the current connectivity state for /status.
type StatusFunc func() (state string, operational bool)

// OpsServer is the optional diagnostics HTTP surface: /health, /status and
// /metrics. It is not part of the data path and its failure never affects
// the bridge core.
type OpsServer struct {
	srv *http.Server
	log zerolog.Logger
}

func NewOpsServer(cfg config.OpsConfig, status StatusFunc, logger zerolog.Logger) *OpsServer {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	if cfg.AuthToken != "" {
		r.Use(AuthRequired(auth.StaticToken{Token: cfg.AuthToken}))
	}
	if corsOrigins := cfg.CorsOrigins; len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	startedAt := time.Now()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "luxbridge",
		})
	})
	r.GET("/status", func(c *gin.Context) {
		state, operational := status()
		c.JSON(http.StatusOK, gin.H{
			"state":       state,
			"operational": operational,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &OpsServer{
		srv: &http.Server{Addr: cfg.ListenAddr, Handler: r},
		log: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (o *OpsServer) Start() {
	go func() {
		if err := o.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error().Err(err).Msg("ops server failed")
		}
	}()
}

func (o *OpsServer) Shutdown(ctx context.Context) error {
	return o.srv.Shutdown(ctx)
}
