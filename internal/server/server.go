// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"compliance_checker/internal/app"
	"compliance_checker/internal/apperr"
	"compliance_checker/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	app     *app.App
	logger  *logger.Logger
	router  *gin.Engine
	server  *http.Server
	timeout time.Duration

	maxUpload int64
}

// New builds the router. The server does not listen until Run.
func New(a *app.App, lgr *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	cfg := a.Config()

	s := &Server{
		app:     a,
		logger:  lgr.Named("http"),
		timeout: cfg.ShutdownTimeout,

		maxUpload: cfg.MaxUploadBytes(),
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	router.Use(logger.GinRecovery(s.logger))
	router.Use(logger.GinLoggerWithConfig(s.logger, logger.MiddlewareOptions{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	router.Use(observe())
	router.NoRoute(func(c *gin.Context) {
		ErrorWithCode(c, apperr.ErrNotFound, c.Request.URL.Path)
	})

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	uploads := limitBody(s.maxUpload + multipartOverhead)

	api := router.Group("/api/v1")
	{
		api.POST("/upload-pdf/", uploads, s.uploadPDF)
		api.POST("/extract-text/", uploads, s.extractText)
		api.POST("/chunk/", s.chunk)
		api.POST("/embeddings/", s.embed)

		docs := api.Group("/documents")
		docs.POST("/", uploads, s.ingestDocument)
		docs.GET("/", s.listDocuments)
		docs.GET("/:id", s.getDocument)
		docs.DELETE("/:id", s.deleteDocument)

		api.POST("/store-embeddings/", s.storeEmbeddings)
		api.POST("/search-embeddings/", s.searchEmbeddings)
		api.POST("/search/", s.search)
		api.POST("/report/", s.report)
		api.POST("/report/resume/", uploads, s.resumeReport)
	}

	s.router = router
	s.server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server.BaseContext = func(net.Listener) context.Context {
		return context.WithoutCancel(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("stopping HTTP server", zap.Duration("timeout", s.timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
