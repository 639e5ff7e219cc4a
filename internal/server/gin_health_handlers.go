package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matrixpanel/internal/health"
)

func (s *GinServer) handleGinVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": s.version,
		"service": "matrixpanel",
	})
}

func (s *GinServer) handleHealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": s.healthTracker.Overall().String()})
}

// handleGinReadinessCheck answers 503 until the listener is bound and the
// asset root has an index.html.
func (s *GinServer) handleGinReadinessCheck(c *gin.Context) {
	ready, snapshot := s.healthTracker.Ready(health.ComponentHTTP, health.ComponentAssets)
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":      ready,
		"status":     s.healthTracker.Overall().String(),
		"components": s.flattenHealth(snapshot),
	})
}

func (s *GinServer) handleHealthDetail(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"overall":    s.healthTracker.Overall().String(),
		"components": s.flattenHealth(s.healthTracker.Snapshot()),
	})
}

// flattenHealth lists components in name order.
func (s *GinServer) flattenHealth(snapshot map[string]health.Status) []gin.H {
	components := make([]gin.H, 0, len(snapshot))
	for _, name := range s.healthTracker.Names() {
		st, ok := snapshot[name]
		if !ok {
			continue
		}
		components = append(components, gin.H{
			"name":       name,
			"level":      st.Level.String(),
			"message":    st.Message,
			"details":    st.Details,
			"updated_at": st.UpdatedAt,
		})
	}
	return components
}
