package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Machine role identifiers. Legacy "org:"-prefixed identifiers from older
// clients are accepted at the boundary and normalized to these.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// NormalizeRole maps a wire role identifier to its machine form. Returns
// false when the identifier names no known role.
func NormalizeRole(raw string) (string, bool) {
	role := strings.ToLower(strings.TrimSpace(raw))
	role = strings.TrimPrefix(role, "org:")
	switch role {
	case RoleAdmin, RoleMember:
		return role, true
	default:
		return "", false
	}
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	GetBySlug(ctx context.Context, slug string) (*OrganizationResponse, error)
	Update(ctx context.Context, actorID snowflake.ID, orgID string, req UpdateOrganizationRequest) (*OrganizationResponse, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]MembershipItem, error)
	RoleOf(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error)
	ListMembers(ctx context.Context, orgID string, req ListMembersRequest) (*MemberPage, error)
	Invite(ctx context.Context, inviterID snowflake.ID, orgID string, req InviteRequest) (*InvitationResponse, error)
	ListInvitations(ctx context.Context, actorID snowflake.ID, orgID string) ([]InvitationResponse, error)
	AcceptInvitation(ctx context.Context, userID snowflake.ID, code string) (*MembershipItem, error)
	RevokeInvitation(ctx context.Context, actorID snowflake.ID, invitationID string) error
}

type CreateOrganizationRequest struct {
	Name     string
	Metadata map[string]any
}

type UpdateOrganizationRequest struct {
	Name     *string
	Metadata map[string]any
}

type InviteRequest struct {
	Email string
	Role  string
	TTL   time.Duration
}

type ListMembersRequest struct {
	Limit  int
	Offset int
	Query  string
	Roles  []string
}

type OrganizationResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Metadata map[string]any `json:"metadata"`
}

// MembershipItem is one entry of a user's organization list.
type MembershipItem struct {
	OrgID    string    `json:"org_id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberItem is one row of an organization's member table, with the user
// profile fields embedded.
type MemberItem struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	JoinedAt     time.Time `json:"joined_at"`
}

type MemberPage struct {
	Members    []MemberItem `json:"members"`
	TotalCount int64        `json:"total_count"`
}

type InvitationResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	// Code is only populated on creation so the caller can deliver it.
	Code string `json:"-"`
}

var (
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrForbidden            = errors.New("forbidden")
	ErrNotFound             = errors.New("organization not found")
	ErrAlreadyMember        = errors.New("already a member")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationExpired    = errors.New("invitation expired")
	ErrInvitationResolved   = errors.New("invitation already resolved")
	ErrInvitationEmailMatch = errors.New("invitation email mismatch")
)
