package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
)

type createInvitationRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

type acceptInvitationRequest struct {
	Code string `json:"code" binding:"required"`
}

func (s *Server) handleCreateInvitation(c *gin.Context) {
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	result := s.actions.InviteMember(c.Request.Context(), currentSession(c), c.Param("id"), req.Email, req.Role)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListInvitations(c *gin.Context) {
	actorID, err := snowflake.ParseString(currentSession(c).UserID)
	if err != nil {
		AbortWithError(c, orgdomain.ErrInvalidUser)
		return
	}

	invitations, err := s.orgs.ListInvitations(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) handleAcceptInvitation(c *gin.Context) {
	var req acceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	userID, err := snowflake.ParseString(currentSession(c).UserID)
	if err != nil {
		AbortWithError(c, orgdomain.ErrInvalidUser)
		return
	}

	membership, err := s.orgs.AcceptInvitation(c.Request.Context(), userID, req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordInvitationAccepted(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"membership": membership})
}

func (s *Server) handleRevokeInvitation(c *gin.Context) {
	actorID, err := snowflake.ParseString(currentSession(c).UserID)
	if err != nil {
		AbortWithError(c, orgdomain.ErrInvalidUser)
		return
	}

	if err := s.orgs.RevokeInvitation(c.Request.Context(), actorID, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
