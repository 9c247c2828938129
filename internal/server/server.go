package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"face-attendance-go/config"
	"face-attendance-go/internal/api/handlers"
	"face-attendance-go/internal/api/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const sessionName = "face_attendance"

// Server ist der HTTP-Server der Bedien-API
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer erstellt den Server und registriert alle Routen unter /api
func NewServer(cfg config.ServerConfig, api *handlers.APIHandler, translator *middleware.Translator) *Server {
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	secret := cfg.SessionSecret
	if secret == "" {
		log.Warn("No session secret configured, using an insecure default")
		secret = "face-attendance-insecure-secret"
	}
	r.Use(sessions.Sessions(sessionName, cookie.NewStore([]byte(secret))))
	r.Use(middleware.I18n(translator))

	api.RegisterRoutes(r.Group("/api"))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &Server{
		router: r,
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:     r,
			ReadTimeout: 30 * time.Second,
			// Kein WriteTimeout, der SSE-Stream bleibt offen
			IdleTimeout: 60 * time.Second,
		},
	}
}

// corsConfig erlaubt ohne Liste oder mit "*" alle Origins, dann ohne Credentials
func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	c.AllowHeaders = append(c.AllowHeaders, "Accept-Language")
	return c
}

// requestLogger protokolliert Anfragen über logrus
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request handled")
		}
	}
}

// Router gibt den Router für Tests zurück
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start startet den HTTP-Server und blockiert bis zum Shutdown
func (s *Server) Start() error {
	log.Infof("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown beendet den Server geordnet
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
