package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parlor/parlor/pkg/config"
	"github.com/parlor/parlor/pkg/db"
	"github.com/parlor/parlor/pkg/handler"
	"github.com/parlor/parlor/pkg/service"
	"github.com/parlor/parlor/pkg/utils"
	"github.com/parlor/parlor/pkg/ws"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.AppConfig
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.AppConfig) (*Server, error) {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins.
	// Note: if you don't need cookies/credentials, keep Allow-Credentials off.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")

			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				// Reject unknown origins.
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		logger:    utils.GetLogger(),
		port:      0,
	}

	if err := server.SetupRoutes(); err != nil {
		return nil, err
	}

	return server, nil
}

func (s *Server) Start(ctx context.Context) error {
	// Read port from environment variable PARLOR_PORT, falling back to the
	// config file value if unset or invalid.
	port := s.cfg.Port()
	if v := os.Getenv("PARLOR_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			port = p
		} else {
			s.logger.Warn("Invalid PARLOR_PORT value, falling back to config", "value", v)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), port)
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	// Attempt to listen on port first; if occupied return error immediately
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	// Record the actual port (useful if we ever switch to :0).
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = port
	}

	s.logger.Info("server listening", "addr", addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	// Listen for context cancellation for graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Non-blocking: if startup fails immediately return error; otherwise return nil to let main continue
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}
	return nil
}

func (s *Server) SetupRoutes() error {
	gdb, err := db.Open(s.cfg.DatabasePath())
	if err != nil {
		return err
	}

	// Create chat store service instance
	storeService := service.NewChatStoreService(gdb)
	if err := storeService.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create auth service instance
	authService := service.NewAuthService(gdb, s.cfg.JWTSecret(),
		time.Duration(s.cfg.TokenTTLHours())*time.Hour)

	// Create reply service instance
	replyService := service.NewReplyService(s.cfg.MinDelaySeconds(), s.cfg.MaxDelaySeconds())

	// The room registry is owned here and shared between the relay (which
	// broadcasts into it) and the websocket gateway (which joins/leaves).
	registry := ws.NewRegistry()

	relayService := service.NewRelayService(storeService, replyService, registry)
	gateway := ws.NewGateway(registry, relayService, authService)

	authHandler := handler.NewAuthHandler(authService)
	conversationHandler := handler.NewConversationHandler(storeService)
	messageHandler := handler.NewMessageHandler(relayService, storeService)

	// WebSocket endpoint
	// /ws
	s.ginEngine.GET("/ws", gateway.Handle)

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Auth API routes
	// /api/auth
	authHandler.RegisterRoutes(apiGroup.Group("/auth"))

	// Conversation management API routes (owner-scoped, token required)
	// /api/conversations
	conversationHandler.RegisterRoutes(apiGroup.Group("/conversations", handler.RequireAuth(authService)))

	// Message API routes (anonymous callers act as the placeholder owner)
	// /api/messages
	messageHandler.RegisterRoutes(apiGroup.Group("/messages", handler.OptionalAuth(authService)))

	return nil
}
