package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	"github.com/tidehub/workdesk/internal/directory"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
)

// APIError is the wire envelope for failed requests.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorSpec struct {
	status  int
	code    string
	message string
}

func mapError(err error) errorSpec {
	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return errorSpec{http.StatusUnauthorized, "invalid_credentials", "Invalid email or password"}
	case errors.Is(err, authdomain.ErrUserExists):
		return errorSpec{http.StatusConflict, "user_exists", "An account with this email already exists"}
	case errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, directory.ErrUnauthenticated):
		return errorSpec{http.StatusUnauthorized, "unauthenticated", "Sign in to continue"}

	case errors.Is(err, orgdomain.ErrForbidden),
		errors.Is(err, directory.ErrForbidden):
		return errorSpec{http.StatusForbidden, "forbidden", "You need the admin role to perform this action"}
	case errors.Is(err, directory.ErrNotMember):
		return errorSpec{http.StatusForbidden, "not_a_member", "You are not a member of this organization"}

	case errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrInvitationNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, directory.ErrNotFound):
		return errorSpec{http.StatusNotFound, "not_found", "Resource not found"}

	case errors.Is(err, orgdomain.ErrAlreadyMember):
		return errorSpec{http.StatusConflict, "already_member", "Already a member of this organization"}
	case errors.Is(err, orgdomain.ErrInvitationExpired):
		return errorSpec{http.StatusGone, "invitation_expired", "This invitation has expired"}
	case errors.Is(err, orgdomain.ErrInvitationResolved):
		return errorSpec{http.StatusConflict, "invitation_resolved", "This invitation was already used or revoked"}
	case errors.Is(err, orgdomain.ErrInvitationEmailMatch):
		return errorSpec{http.StatusForbidden, "invitation_email_mismatch", "This invitation was issued to a different email"}

	case errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidUser),
		errors.Is(err, orgdomain.ErrInvalidOrganization),
		errors.Is(err, orgdomain.ErrInvalidEmail),
		errors.Is(err, orgdomain.ErrInvalidRole),
		errors.Is(err, directory.ErrInvalidArgument):
		return errorSpec{http.StatusUnprocessableEntity, "invalid_argument", err.Error()}

	case errors.Is(err, directory.ErrUnavailable):
		return errorSpec{http.StatusBadGateway, "directory_unavailable", "The directory service is unavailable"}
	default:
		return errorSpec{http.StatusInternalServerError, "internal", "Something went wrong"}
	}
}

// AbortWithError records the error for the logging middleware and writes the
// mapped envelope.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	spec := mapError(err)
	c.AbortWithStatusJSON(spec.status, gin.H{"error": APIError{Code: spec.code, Message: spec.message}})
}

// abortBadRequest covers malformed request bodies before domain validation.
func abortBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": APIError{
		Code:    "bad_request",
		Message: "Malformed request body",
	}})
}

// ClassifyError feeds the request logger's error fields.
func ClassifyError(err error) (string, string) {
	spec := mapError(err)
	errorType := "client"
	if spec.status >= http.StatusInternalServerError {
		errorType = "server"
	}
	return errorType, spec.code
}
