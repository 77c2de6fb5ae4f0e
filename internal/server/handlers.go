package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"biorag/internal/port"
	"biorag/internal/usecase"
)

const llmProbePrompt = `You are a test assistant. Return ONLY this exact JSON:
{"test": "success", "message": "LLM is working correctly"}`

type searchRequest struct {
	Query     string `json:"query"`
	Condition string `json:"condition"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type healthResponse struct {
	API   string `json:"api"`
	Store string `json:"store"`
	LLM   string `json:"llm"`
}

type llmProbeResponse struct {
	Status         string  `json:"status"`
	Model          string  `json:"model"`
	LLMResponse    *string `json:"llm_response"`
	ResponseLength int     `json:"response_length"`
	IsJSON         bool    `json:"is_json"`
	Error          string  `json:"error,omitempty"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "biorag search API is running",
		"status":  "healthy",
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query must not be empty")
	}

	s.logger.Printf("search query=%q condition=%q", req.Query, req.Condition)

	res, err := s.deps.Answers.Answer(c.Request().Context(), req.Query, req.Condition)
	switch {
	case errors.Is(err, usecase.ErrNoRelevantData):
		return echo.NewHTTPError(http.StatusNotFound,
			"No relevant organism data found for the given query and condition").SetInternal(err)
	case errors.Is(err, usecase.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, usecase.ErrEmbedding):
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate embedding").SetInternal(err)
	case errors.Is(err, usecase.ErrChunkStore):
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to query chunk store").SetInternal(err)
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}

	return c.JSON(http.StatusOK, res.Answer)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	health := healthResponse{API: "healthy", Store: "unknown", LLM: "unknown"}

	if s.deps.Store == nil {
		health.Store = "disconnected"
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		health.Store = "error: " + err.Error()
	} else {
		health.Store = "healthy"
	}

	if p, ok := s.deps.LLM.(port.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			health.LLM = "error: " + err.Error()
		} else {
			health.LLM = "healthy"
		}
	}

	return c.JSON(http.StatusOK, health)
}

// handleTestLLM sends a fixed prompt and reports the raw reply. Model errors
// are part of the report, not HTTP errors.
func (s *Server) handleTestLLM(c echo.Context) error {
	if s.deps.LLM == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no model configured")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	resp := llmProbeResponse{Model: s.deps.LLM.ModelName()}

	reply, err := s.deps.LLM.Complete(ctx, port.CompletionRequest{
		UserPrompt:  llmProbePrompt,
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return c.JSON(http.StatusOK, resp)
	}

	reply = strings.TrimSpace(reply)
	resp.Status = "success"
	resp.LLMResponse = &reply
	resp.ResponseLength = len(reply)
	resp.IsJSON = json.Valid([]byte(reply))
	return c.JSON(http.StatusOK, resp)
}
