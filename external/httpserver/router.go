package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/livetranscribe/external/ws"
	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/stream"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	serviceName      = "Real-time STT Service"
	serviceVersion   = "1.0.0"
	handshakeTimeout = 10 * time.Second
)

// ConnectionServer serves one upgraded client connection until it stops.
type ConnectionServer interface {
	Serve(ctx context.Context, connID, remoteAddr string, conn stream.Conn) stream.StopReason
}

type routerDeps struct {
	cfg      *config.Config
	server   ConnectionServer
	gatherer prometheus.Gatherer
	// baseCtx is cancelled when the process begins shutting down.
	baseCtx context.Context
	active  *sync.WaitGroup
}

func newRouter(deps routerDeps) *gin.Engine {
	if deps.cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(corsConfig(deps.cfg)))

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "online", "service": serviceName, "version": serviceVersion})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if deps.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.gatherer, promhttp.HandlerOpts{})))
	}

	upgrader := websocket.Upgrader{
		HandshakeTimeout: handshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			return origin == "" || deps.cfg.IsOriginAllowed(origin)
		},
	}
	engine.GET("/ws/stt", func(c *gin.Context) {
		handleStream(c, upgrader, deps)
	})
	return engine
}

func corsConfig(cfg *config.Config) cors.Config {
	return cors.Config{
		// A function rather than AllowOrigins so "*" keeps working with credentials.
		AllowOriginFunc:  cfg.IsOriginAllowed,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

func handleStream(c *gin.Context, upgrader websocket.Upgrader, deps routerDeps) {
	if deps.baseCtx.Err() != nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote_addr", c.Request.RemoteAddr, "error", err)
		return
	}

	connID := uuid.NewString()
	deps.active.Add(1)
	defer deps.active.Done()

	slog.Info("client connected", "connection_id", connID, "remote_addr", c.Request.RemoteAddr)
	reason := deps.server.Serve(deps.baseCtx, connID, c.Request.RemoteAddr, ws.NewConn(connID, socket))
	slog.Info("client disconnected", "connection_id", connID, "stop_reason", string(reason))
}
