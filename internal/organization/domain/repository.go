package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// MembershipRow joins a membership with its organization.
type MembershipRow struct {
	OrgID     snowflake.ID
	Name      string
	Slug      string
	Role      string
	CreatedAt time.Time
}

// MemberRow joins a membership with its user profile.
type MemberRow struct {
	MembershipID snowflake.ID
	UserID       snowflake.ID
	Email        string
	DisplayName  string
	Role         string
	CreatedAt    time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	UpdateOrganization(ctx context.Context, orgID snowflake.ID, fields map[string]any) error
	GetOrganization(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	AddMember(ctx context.Context, member OrganizationMember) error
	MembershipsByUser(ctx context.Context, userID snowflake.ID) ([]MembershipRow, error)
	RoleOf(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error)
	ListMembers(ctx context.Context, orgID snowflake.ID, req ListMembersRequest) ([]MemberRow, int64, error)

	CreateInvitation(ctx context.Context, invitation OrganizationInvitation) error
	GetInvitation(ctx context.Context, invitationID snowflake.ID) (*OrganizationInvitation, error)
	GetInvitationByCode(ctx context.Context, code string) (*OrganizationInvitation, error)
	ListInvitations(ctx context.Context, orgID snowflake.ID) ([]OrganizationInvitation, error)
	UpdateInvitationStatus(ctx context.Context, invitationID snowflake.ID, status string, at time.Time) error
}
