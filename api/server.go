// Package api serves the instruction protocol and player state over HTTP
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"go-perform/protocol"
	"go-perform/sequencer"
)

// enqueueTimeout bounds how long a request waits for room in a full queue
const enqueueTimeout = 2 * time.Second

// Performer is the part of the player the API drives
type Performer interface {
	Enqueue(ctx context.Context, raw []byte) error
	Snapshot() sequencer.State
}

// Server is the HTTP front end of a Performer
type Server struct {
	perf   Performer
	parser protocol.Parser
	logger *log.Logger
	engine *gin.Engine
}

// NewServer builds the routes
func NewServer(perf Performer, logger *log.Logger) *Server {
	s := &Server{perf: perf, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/state", s.handleState)
		v1.POST("/instructions", s.handleInstructions)
	}

	s.engine = r
	return s
}

// Handler returns the server's http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "go-perform",
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.perf.Snapshot())
}

// handleInstructions checks the batch parses, then queues the raw bytes for
// the dispatch loop. The batch is applied later, in queue order.
func (s *Server) handleInstructions(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if _, err := s.parser.Parse(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), enqueueTimeout)
	defer cancel()
	if err := s.perf.Enqueue(ctx, raw); err != nil {
		s.logger.Warn("instruction queue unavailable", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "instruction queue unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
