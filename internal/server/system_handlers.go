package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrisense-dev/agrisense/internal/models"
)

// SystemInfoResponse contains build and account information
type SystemInfoResponse struct {
	Version   string         `json:"version"`
	GoVersion string         `json:"go_version"`
	Platform  string         `json:"platform"`
	Uptime    string         `json:"uptime"`
	Users     map[string]int `json:"users"`
}

// @Summary Get system information
// @Description Returns version, runtime and user counts per role (admin only)
// @Tags system
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SystemInfoResponse
// @Failure 500 {object} map[string]interface{}
// @Router /api/system/info [get]
func (s *Server) getSystemInfo(c *gin.Context) {
	var users []models.User
	if err := s.db.WithContext(c.Request.Context()).Select("role").Find(&users).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	counts := make(map[string]int)
	for _, u := range users {
		counts[u.Role.String()]++
	}

	c.JSON(http.StatusOK, SystemInfoResponse{
		Version:   s.version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Users:     counts,
	})
}
