// Package admin serves the HTTP status surface: health, an INFO-style
// JSON snapshot, and Prometheus metrics. It is an operator tool, bound
// to the --admin-addr address and disabled when that is empty, and
// entirely separate from the wire protocol listener.
package admin

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edirooss/zkv-server/internal/config"
	"github.com/edirooss/zkv-server/internal/metrics"
	"github.com/edirooss/zkv-server/internal/repl"
	"github.com/edirooss/zkv-server/internal/store"
)

// Admin is the HTTP status listener.
type Admin struct {
	log *zap.Logger
	srv *http.Server
}

// zapLogger logs each request through zap, status-leveled.
func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// New builds the admin server on cfg.AdminAddr.
func New(log *zap.Logger, cfg *config.Config, st *store.Store, rs *repl.State) *Admin {
	log = log.Named("admin")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS (dev only)
	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins: []string{"http://localhost:5173"},
			AllowMethods: []string{"GET"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.Use(zapLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/api/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"role":               rs.Role(),
			"master_replid":      rs.ReplID(),
			"master_repl_offset": rs.Offset(),
			"connected_replicas": rs.ReplicaCount(),
			"keys":               st.Len(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		metrics.ReplicationOffset.Set(float64(rs.Offset()))
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	return &Admin{
		log: log,
		srv: &http.Server{
			Addr:    cfg.AdminAddr,
			Handler: r,

			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 15,

			ErrorLog: zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
		},
	}
}

// Run serves until the context is canceled, then shuts down
// gracefully.
func (a *Admin) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("status listener up", zap.String("addr", a.srv.Addr))
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
