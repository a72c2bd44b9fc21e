package server

import (
	"github.com/gin-gonic/gin"
	"github.com/tidehub/workdesk/internal/auth/session"
	"github.com/tidehub/workdesk/internal/directory"
	obscontext "github.com/tidehub/workdesk/internal/observability/context"
)

const sessionContextKey = "workdesk.session"

// AuthRequired resolves the session cookie through the directory and stores
// the session on the request. Requests without a valid session are rejected
// with the unauthenticated envelope.
func AuthRequired(sessions *session.Manager, dir directory.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, directory.ErrUnauthenticated)
			return
		}

		sess, err := dir.Session(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithUserID(c.Request.Context(), sess.UserID)
		if sess.ActiveOrgID != "" {
			ctx = obscontext.WithOrgID(ctx, sess.ActiveOrgID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// currentSession returns the session placed by AuthRequired.
func currentSession(c *gin.Context) *directory.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*directory.Session)
	return sess
}
