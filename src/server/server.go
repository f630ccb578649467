package server

import (
	"fmt"
	"sync/atomic"
	"time"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// RelayServer
// -----------------------------------------------------------------------------

type RelayServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	vendor   interfaces.IVendorREST
	dialer   interfaces.IStreamDialer
	db       interfaces.IDatabase
	calendar *utils.TradingCalendar

	// Open browser sessions, for /api/health.
	openSessions atomic.Int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewRelayServer(
	cfg *models.MConfig,
	log *logger.Logger,
	vendor interfaces.IVendorREST,
	dialer interfaces.IStreamDialer,
	db interfaces.IDatabase,
) *RelayServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &RelayServer{
		Config:   cfg,
		Logger:   log,
		engine:   gin.Default(),
		vendor:   vendor,
		dialer:   dialer,
		db:       db,
		calendar: utils.NewTradingCalendar(log),
	}

	// Permissive CORS: the relay fronts a local learning SPA and holds no
	// browser-side secrets, so any origin may call it.
	s.engine.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *RelayServer) setupRoutes() {
	// REST proxy endpoints
	s.engine.GET("/api/market/bars", s.getBars)
	s.engine.GET("/api/market/snapshot", s.getSnapshot)
	s.engine.GET("/api/paper/account", s.getAccount)
	s.engine.GET("/api/paper/positions", s.getPositions)
	s.engine.POST("/api/paper/order", s.postOrder)

	// Relay-local endpoints
	s.engine.GET("/api/market/status", s.getMarketStatus)
	s.engine.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.engine.GET("/ws/market", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *RelayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting relay on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

// Engine exposes the router for tests.
func (s *RelayServer) Engine() *gin.Engine {
	return s.engine
}

// -----------------------------------------------------------------------------
// Local Route Handlers
// -----------------------------------------------------------------------------

func (s *RelayServer) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":        "ok",
		"name":          s.Config.Name,
		"open_sessions": s.openSessions.Load(),
	})
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getMarketStatus(c *gin.Context) {
	c.JSON(200, s.calendar.Status(time.Now()))
}
