package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/tidehub/workdesk/internal/directory"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name     string         `json:"name" binding:"required"`
	Metadata map[string]any `json:"metadata"`
}

type updateOrganizationRequest struct {
	Name     *string        `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleCreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	userID, err := snowflake.ParseString(currentSession(c).UserID)
	if err != nil {
		AbortWithError(c, orgdomain.ErrInvalidUser)
		return
	}

	org, err := s.orgs.Create(c.Request.Context(), userID, orgdomain.CreateOrganizationRequest{
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"organization": org})
}

// handleResolveOrganizationSlug answers whether a slug names any
// organization at all, so the view layer can tell a dead URL apart from one
// the user simply has no membership in.
func (s *Server) handleResolveOrganizationSlug(c *gin.Context) {
	org, err := s.orgs.GetBySlug(c.Request.Context(), c.Query("slug"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": gin.H{
		"id":   org.ID,
		"name": org.Name,
		"slug": org.Slug,
	}})
}

func (s *Server) handleGetOrganization(c *gin.Context) {
	result := s.actions.OrgDetails(c.Request.Context(), currentSession(c), c.Param("id"))
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerifyAdmin(c *gin.Context) {
	result := s.actions.VerifyAdmin(c.Request.Context(), currentSession(c), c.Param("id"))
	c.JSON(http.StatusOK, result)
}

// handleUpdateOrganization always answers 200 with a structured result; the
// admin gate reports through result.success, not through an HTTP fault.
func (s *Server) handleUpdateOrganization(c *gin.Context) {
	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	result := s.actions.UpdateOrganization(c.Request.Context(), currentSession(c), c.Param("id"), directory.OrganizationUpdate{
		Name:     req.Name,
		Metadata: req.Metadata,
	})
	c.JSON(http.StatusOK, result)
}
