package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"biorag/internal/port"
	"biorag/internal/telemetry"
	"biorag/internal/usecase"
)

// Answerer resolves a search query into a shaped answer.
type Answerer interface {
	Answer(ctx context.Context, query, condition string) (*usecase.AnswerResult, error)
}

// Deps are the collaborators behind the HTTP surface. Metrics may be nil.
type Deps struct {
	Answers Answerer
	Store   port.ChunkStore
	LLM     port.LLM
	Metrics *telemetry.Metrics
	Logger  *log.Logger
}

// Server is the HTTP search API.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	logger *log.Logger
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, deps: deps, logger: logger}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.POST("/search", s.handleSearch)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/test-llm", s.handleTestLLM)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// handleError writes every error as {"error", "detail"} and logs it.
func (s *Server) handleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	detail := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			detail = fmt.Sprint(he.Message)
		}
		if he.Internal != nil {
			err = he.Internal
		}
	}

	req := c.Request()
	s.logger.Printf("%d %s %s from %s (request %s): %v", code, req.Method, req.URL.Path, c.RealIP(),
		c.Response().Header().Get(echo.HeaderXRequestID), err)

	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: http.StatusText(code), Detail: detail})
}
