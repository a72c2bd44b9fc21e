// Package directory defines the narrow surface the workspace needs from the
// identity backend: resolving sessions, listing memberships, switching the
// active organization, and the admin-gated organization operations. Two
// implementations exist, an embedded one backed by the local database and a
// client for a remote directory service.
package directory

import (
	"context"
	"errors"
	"time"
)

// Session is the caller's authenticated session. ActiveOrgID is empty when
// the session runs in the personal context.
type Session struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	ActiveOrgID string `json:"active_org_id,omitempty"`
}

// Membership is one organization the user belongs to.
type Membership struct {
	OrgID    string    `json:"org_id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Member is one row of an organization's member table.
type Member struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
}

// MemberPage carries one page of members plus the unpaged total.
type MemberPage struct {
	Members    []Member `json:"members"`
	TotalCount int64    `json:"total_count"`
}

// MemberQuery filters and pages a member listing.
type MemberQuery struct {
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
	Query  string   `json:"query,omitempty"`
	Roles  []string `json:"roles,omitempty"`
}

// Organization is the tenant record with its free-form profile metadata.
type Organization struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Metadata map[string]any `json:"metadata"`
}

// OrganizationUpdate patches an organization. Nil fields are left untouched.
type OrganizationUpdate struct {
	Name     *string        `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// InvitationRequest asks for a new invitation to an organization.
type InvitationRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Invitation is a pending invite as seen by the inviter.
type Invitation struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrNotMember       = errors.New("not a member")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("directory unavailable")
)

// Service is the directory capability surface.
type Service interface {
	// Session resolves the session behind a raw session token.
	Session(ctx context.Context, token string) (*Session, error)

	// Memberships lists every organization the user belongs to.
	Memberships(ctx context.Context, userID string) ([]Membership, error)

	// ActivateOrganization points the session at orgID. The caller must be
	// a member of the target. An empty orgID returns the session to the
	// personal context.
	ActivateOrganization(ctx context.Context, sessionID string, orgID string) error

	// Organization fetches one organization.
	Organization(ctx context.Context, orgID string) (*Organization, error)

	// Members pages through an organization's member table.
	Members(ctx context.Context, orgID string, query MemberQuery) (*MemberPage, error)

	// CreateInvitation issues an invitation on behalf of actorID.
	CreateInvitation(ctx context.Context, actorID string, orgID string, req InvitationRequest) (*Invitation, error)

	// UpdateOrganization patches the organization profile on behalf of actorID.
	UpdateOrganization(ctx context.Context, actorID string, orgID string, update OrganizationUpdate) (*Organization, error)
}
