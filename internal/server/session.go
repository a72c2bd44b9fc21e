package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type activateRequest struct {
	// OrgID empty or absent returns the session to the personal context.
	OrgID string `json:"org_id"`
}

// syncRequest names the slug the client currently observes. An absent slug
// reconciles to a no-op rather than a validation error.
type syncRequest struct {
	Slug string `json:"slug"`
}

func (s *Server) handleActivate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	sess := currentSession(c)
	if err := s.dir.ActivateOrganization(c.Request.Context(), sess.SessionID, req.OrgID); err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordActivation(c.Request.Context(), req.OrgID == "")
	c.JSON(http.StatusOK, gin.H{"active_org_id": req.OrgID})
}

// handleSync runs one reconciliation pass for the slug the client is looking
// at. Activation failures are not surfaced as request errors; the outcome
// reports the context that remains in effect.
func (s *Server) handleSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	sess := currentSession(c)
	memberships, err := s.dir.Memberships(c.Request.Context(), sess.UserID)
	loaded := err == nil
	if err != nil {
		// Memberships not loading is the no-op case, not a failure.
		_ = c.Error(err)
	}

	outcome := s.reconciler.Reconcile(c.Request.Context(), sess, req.Slug, memberships, loaded)
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) handleListMyOrganizations(c *gin.Context) {
	sess := currentSession(c)
	memberships, err := s.dir.Memberships(c.Request.Context(), sess.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"memberships": memberships})
}
