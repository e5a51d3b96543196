// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/poiesic/predindex/core"
	"github.com/poiesic/predindex/storage"
)

// Limits for the search endpoint.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

const shutdownTimeout = 5 * time.Second

// Finder answers similarity queries. *search.Searcher satisfies it.
type Finder interface {
	FindSimilar(ctx context.Context, kind core.RecordKind, query string, limit int) ([]*core.SearchResult, error)
}

// Quoter fetches live quotes. *source.Registry satisfies it.
type Quoter interface {
	Quote(ctx context.Context, ticker string, src core.Source) (*core.Quote, error)
}

// Server exposes stored records and semantic search over HTTP.
type Server struct {
	finder     Finder
	tables     storage.TableStore
	quoter     Quoter // optional
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithQuoter enables GET /v1/quote/:ticker.
func WithQuoter(q Quoter) Option {
	return func(s *Server) error {
		s.quoter = q
		return nil
	}
}

// New builds the router.
func New(finder Finder, tables storage.TableStore, opts ...Option) (*Server, error) {
	if finder == nil {
		return nil, errors.New("server: finder is required")
	}
	if tables == nil {
		return nil, errors.New("server: table store is required")
	}

	s := &Server{
		finder: finder,
		tables: tables,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/healthz", s.health)
	v1 := router.Group("/v1")
	{
		v1.GET("/search", s.search)
		v1.GET("/stats", s.stats)
		v1.GET("/records/:kind/:source/:ticker", s.record)
		v1.GET("/quote/:ticker", s.quote)
	}
	s.router = router
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}
