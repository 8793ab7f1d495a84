package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrisense-dev/agrisense/internal/guard"
	"github.com/agrisense-dev/agrisense/internal/menu"
	"github.com/agrisense-dev/agrisense/internal/session"
)

// MenuResponse is the sidebar tree for the caller's role
type MenuResponse struct {
	Role  session.Role `json:"role"`
	Items []menu.Entry `json:"items"`
}

// NavigateResponse is the guard's decision for one route
type NavigateResponse struct {
	Path     string         `json:"path"`
	Requires string         `json:"requires"`
	Declared bool           `json:"declared"`
	Decision guard.Decision `json:"decision"`
}

// RouteDetail describes a declared dashboard route
type RouteDetail struct {
	Path     string `json:"path"`
	Requires string `json:"requires"`
}

func requestSession(c *gin.Context) session.Session {
	sessionData, _ := GetSessionData(c)
	return sessionData.Session()
}

// @Summary Navigation menu
// @Description Returns the navigation tree visible to the caller (anonymous callers get public entries)
// @Tags navigation
// @Produce json
// @Success 200 {object} MenuResponse
// @Router /api/menu [get]
func (s *Server) getMenu(c *gin.Context) {
	role := requestSession(c).EffectiveRole()

	c.JSON(http.StatusOK, MenuResponse{
		Role:  role,
		Items: menu.Build(role),
	})
}

// @Summary Evaluate navigation
// @Description Runs the route guard for path against the caller's session
// @Tags navigation
// @Produce json
// @Param path query string true "Dashboard route"
// @Success 200 {object} NavigateResponse
// @Router /api/navigate [get]
func (s *Server) navigate(c *gin.Context) {
	path := c.Query("path")
	sess := requestSession(c)

	route, declared := s.routes.Lookup(path)
	decision := s.routes.Navigate(path, sess)

	s.logger.Debug().
		Str("route", route.Path).
		Stringer("outcome", decision.Outcome).
		Bool("authenticated", sess.Authenticated()).
		Msg("Navigation evaluated")

	c.JSON(http.StatusOK, NavigateResponse{
		Path:     route.Path,
		Requires: route.Requires.String(),
		Declared: declared,
		Decision: decision,
	})
}

// @Summary List routes
// @Description Lists the declared dashboard routes and their required capabilities
// @Tags navigation
// @Produce json
// @Success 200 {array} RouteDetail
// @Router /api/routes [get]
func (s *Server) listRoutes(c *gin.Context) {
	routes := s.routes.Routes()
	details := make([]RouteDetail, len(routes))
	for i, r := range routes {
		details[i] = RouteDetail{Path: r.Path, Requires: r.Requires.String()}
	}
	c.JSON(http.StatusOK, details)
}
