package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ForexSentinel/internal/scheduler"
)

// Options configure the HTTP surface.
type Options struct {
	ListenAddr     string
	AllowedOrigins []string
	Debug          bool
}

// Server wires the gin engine, the API handlers and the websocket hub.
type Server struct {
	Engine   *gin.Engine
	Hub      *Hub
	Handlers *Handlers
	http     *http.Server
	unsub    func()
}

func New(opts Options, store *scheduler.Store, p Pipeline, models []string) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(), Cors(opts.AllowedOrigins))

	h := NewHandlers(store, p, models)
	hub := NewHub(func() any { return store.Snapshot() }, checkOrigin(opts.AllowedOrigins))
	SetupRoutes(engine, h, hub)

	s := &Server{
		Engine:   engine,
		Hub:      hub,
		Handlers: h,
		http:     &http.Server{Addr: opts.ListenAddr, Handler: engine, ReadHeaderTimeout: 10 * time.Second},
	}
	s.unsub = store.Subscribe(func(snap scheduler.Snapshot) {
		hub.Broadcast(MessageTypeState, snap)
	})
	return s
}

// SetupRoutes registers every dashboard route.
func SetupRoutes(r *gin.Engine, h *Handlers, hub *Hub) {
	r.GET("/health", h.Health)
	r.GET("/ws", hub.HandleWebSocket)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/state", h.GetState)
		v1.GET("/news", h.GetNews)
		v1.POST("/news/refresh", h.RefreshNews)
		v1.GET("/analysis", h.GetAnalysis)
		v1.POST("/analysis/retry", h.RetryAnalysis)
		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.PutSettings)
	}
}

// Start runs the hub and serves HTTP until Shutdown. It blocks.
func (s *Server) Start(ctx context.Context) error {
	go s.Hub.Run(ctx)
	logrus.Infof("http server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	return s.http.Shutdown(ctx)
}
