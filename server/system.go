package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealthz reports per-provider health and the degraded feature list.
// The overall status is "degraded" as soon as any provider is unavailable;
// the endpoint itself always answers 200 while the process is up.
func (s *Server) handleHealthz(c *gin.Context) {
	providers := s.gw.HealthCheck(c.Request.Context())

	status := "ok"
	for _, health := range providers {
		if !health.Available {
			status = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"providers":         providers,
		"degraded_features": s.gw.Degradations().Snapshot(),
	})
}

// handleStats returns the operator usage snapshot.
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.gw.Stats())
}
