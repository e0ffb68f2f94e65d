// Package api serves the stored orders over a read-only HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ava-labs/orderfill-indexer/internal/types"
	"github.com/ava-labs/orderfill-indexer/pkg/data"
)

// Store is the read side of data.OrderRepository.
type Store interface {
	OrdersBySender(ctx context.Context, sender string) ([]types.OrderFilled, error)
	AllOrders(ctx context.Context) ([]types.OrderFilled, error)
	FilledOrderStats(ctx context.Context, filler string) (*data.OrderStats, error)
	Ping(ctx context.Context) error
}

// Server is the query API HTTP server.
type Server struct {
	httpServer *http.Server
	log        *zap.SugaredLogger
}

// NewServer builds the router on addr (e.g. ":8080").
func NewServer(addr string, store Store, log *zap.SugaredLogger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(store, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// NewRouter registers the API routes.
func NewRouter(store Store, log *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handler{store: store, log: log}
	router.GET("/health", h.health)
	router.GET("/orders", h.orders)
	router.GET("/stats/orders_filled", h.ordersFilledStats)
	return router
}

// Start begins serving. This is non-blocking.
// The returned channel receives an error if the server fails.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("api server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown stops the server, waiting for active requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
