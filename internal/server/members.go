package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tidehub/workdesk/internal/directory"
)

func (s *Server) handleListMembers(c *gin.Context) {
	query := directory.MemberQuery{
		Query: c.Query("query"),
		Roles: c.QueryArray("role"),
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			query.Offset = offset
		}
	}

	result := s.actions.Members(c.Request.Context(), currentSession(c), c.Param("id"), query)
	c.JSON(http.StatusOK, result)
}
