package handlers

import (
	"net/http"

	"pawbook/utils"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health with the last dependency probe.
func Health(c *gin.Context) {
	status := utils.GetHealthStatus()
	code := http.StatusOK
	state := "ok"
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(code, gin.H{"status": state, "dependencies": status})
}
