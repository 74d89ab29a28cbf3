package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kevingruber/journal-gateway/internal/config"
	"github.com/kevingruber/journal-gateway/internal/handler"
	"github.com/kevingruber/journal-gateway/internal/journal"
	"github.com/kevingruber/journal-gateway/internal/middleware"
	"github.com/kevingruber/journal-gateway/internal/sysinfo"
)

// Server represents the HTTP server.
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	source  journal.Source
	logger  zerolog.Logger
	metrics *middleware.Metrics
}

// New creates a new server instance.
func New(cfg *config.Config, source journal.Source, sys sysinfo.Provider, logger zerolog.Logger) *Server {
	// Set Gin mode based on log level
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		router: gin.New(),
		source: source,
		logger: logger,
	}

	// Initialize metrics if enabled
	if cfg.Metrics.Enabled {
		metrics, err := middleware.NewMetrics()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize metrics")
		}
		s.metrics = metrics
	}

	s.setupRoutes(sys)
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(sys sysinfo.Provider) {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(middleware.RequestLogger(s.logger))

	// Metrics middleware
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}

	// The gateway speaks GET only; everything else is refused at the
	// connection level, without a body.
	s.router.HandleMethodNotAllowed = true
	s.router.NoMethod(refuseConnection)
	s.router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			refuseConnection(c)
			return
		}
		handler.NotFound(c)
	})

	// Health endpoints
	s.router.GET("/ping", s.handlePing)
	s.router.GET("/health", s.handleHealth)

	// Metrics endpoint
	if s.cfg.Metrics.Enabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	gw, err := handler.New(s.source, sys, s.cfg.Browse.File, s.logger)
	if err != nil {
		s.logger.Fatal().Err(err).Msg("Failed to initialize gateway")
	}

	s.router.GET("/", gw.Redirect)
	s.router.GET("/browse", gw.Browse)
	s.router.GET("/entries", gw.Entries)
	s.router.GET("/fields/:field", gw.Fields)
	s.router.GET("/machine", gw.Machine)
}

// refuseConnection drops non-GET requests on the floor: the
// connection is hijacked and closed without writing a response.
func refuseConnection(c *gin.Context) {
	if hj, ok := c.Writer.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
			c.Abort()
			return
		}
	}
	c.AbortWithStatus(http.StatusMethodNotAllowed)
}

// handlePing is a simple health check endpoint.
func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// handleHealth checks that the journal source can still hand out
// handles.
func (s *Server) handleHealth(c *gin.Context) {
	j, err := s.source.Open()
	if err != nil {
		s.logger.Error().Err(err).Msg("health check failed: journal unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"journal": "unreachable",
			"error":   err.Error(),
		})
		return
	}
	j.Close()

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"journal": "open",
	})
}

// listener picks the listen socket: a single socket passed through
// the activation protocol is adopted; otherwise the configured port
// is bound. More than one passed socket is an error.
func (s *Server) listener() (net.Listener, error) {
	passed, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("failed to determine passed sockets: %w", err)
	}
	switch len(passed) {
	case 0:
		return net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	case 1:
		s.logger.Info().Msg("adopting passed listen socket")
		return passed[0], nil
	default:
		return nil, fmt.Errorf("can't listen on more than one socket")
	}
}

// Run starts the HTTP server.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listener()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	tlsEnabled := s.cfg.Server.TLS.Enabled
	if tlsEnabled {
		// Key material is loaded once here and read-only afterwards.
		cert, err := tls.LoadX509KeyPair(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	// Channel to capture server errors
	errCh := make(chan error, 1)

	go func() {
		mode := "http"
		if tlsEnabled {
			mode = "https"
		}
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("mode", mode).
			Msg("starting server")

		var err error
		if tlsEnabled {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Router returns the Gin router for testing purposes.
func (s *Server) Router() *gin.Engine {
	return s.router
}
