package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quotewise/aigate/gateway"
	"github.com/quotewise/aigate/llm"
)

// ChatRequest is the execute endpoint payload. AllowFallback defaults to
// true when omitted.
type ChatRequest struct {
	Model             string        `json:"model,omitempty"`
	Messages          []llm.Message `json:"messages" binding:"required"`
	System            string        `json:"system,omitempty"`
	MaxTokens         int64         `json:"max_tokens,omitempty"`
	Temperature       *float64      `json:"temperature,omitempty"`
	PreferredProvider string        `json:"preferred_provider,omitempty"`
	AllowFallback     *bool         `json:"allow_fallback,omitempty"`
	Feature           string        `json:"feature,omitempty"`
}

// handleChat runs one orchestrated gateway call.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	opts := gateway.DefaultExecuteOptions(req.Feature)
	opts.PreferredProvider = req.PreferredProvider
	if req.AllowFallback != nil {
		opts.AllowFallback = *req.AllowFallback
	}

	result, err := s.gw.Execute(c.Request.Context(), &llm.Request{
		Model:       req.Model,
		Messages:    req.Messages,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, opts)
	if err != nil {
		s.writeGatewayError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeGatewayError maps a structured gateway failure onto HTTP. Callers
// always receive the per-provider error map, never a raw transport error.
func (s *Server) writeGatewayError(c *gin.Context, err error) {
	var gwErr *gateway.GatewayError
	if !errors.As(err, &gwErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusServiceUnavailable
	switch gwErr.Code {
	case gateway.ReasonDeadlineExceeded:
		status = http.StatusGatewayTimeout
	case "unknown_provider":
		status = http.StatusBadRequest
	}

	if gwErr.Retryable && gwErr.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(gwErr.RetryAfterSeconds))
	}
	c.JSON(status, gwErr)
}
