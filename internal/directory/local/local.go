// Package local implements the directory over the embedded database, going
// through the auth and organization services.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	"github.com/tidehub/workdesk/internal/directory"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
)

type service struct {
	auth authdomain.Service
	orgs orgdomain.Service
}

// New wires the embedded directory.
func New(auth authdomain.Service, orgs orgdomain.Service) directory.Service {
	return &service{auth: auth, orgs: orgs}
}

func (s *service) Session(ctx context.Context, token string) (*directory.Session, error) {
	session, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, mapAuthErr(err)
	}
	user, err := s.auth.UserByID(ctx, session.UserID)
	if err != nil {
		return nil, mapAuthErr(err)
	}

	out := &directory.Session{
		SessionID:   session.ID.String(),
		UserID:      user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}
	if session.ActiveOrgID != nil {
		out.ActiveOrgID = snowflake.ID(*session.ActiveOrgID).String()
	}
	return out, nil
}

func (s *service) Memberships(ctx context.Context, userID string) ([]directory.Membership, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, directory.ErrInvalidArgument
	}
	items, err := s.orgs.ListByUser(ctx, id)
	if err != nil {
		return nil, mapOrgErr(err)
	}

	memberships := make([]directory.Membership, 0, len(items))
	for _, item := range items {
		memberships = append(memberships, directory.Membership{
			OrgID:    item.OrgID,
			Name:     item.Name,
			Slug:     item.Slug,
			Role:     item.Role,
			JoinedAt: item.JoinedAt,
		})
	}
	return memberships, nil
}

func (s *service) ActivateOrganization(ctx context.Context, sessionID string, orgID string) error {
	sid, err := parseID(sessionID)
	if err != nil {
		return directory.ErrInvalidArgument
	}
	session, err := s.auth.SessionByID(ctx, sid)
	if err != nil {
		return mapAuthErr(err)
	}

	if orgID == "" {
		return s.auth.SetActiveOrg(ctx, sid, nil)
	}

	oid, err := parseID(orgID)
	if err != nil {
		return directory.ErrInvalidArgument
	}
	role, err := s.orgs.RoleOf(ctx, oid, session.UserID)
	if err != nil {
		return mapOrgErr(err)
	}
	if role == "" {
		return directory.ErrNotMember
	}

	target := int64(oid)
	return s.auth.SetActiveOrg(ctx, sid, &target)
}

func (s *service) Organization(ctx context.Context, orgID string) (*directory.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, mapOrgErr(err)
	}
	return toOrganization(org), nil
}

func (s *service) Members(ctx context.Context, orgID string, query directory.MemberQuery) (*directory.MemberPage, error) {
	page, err := s.orgs.ListMembers(ctx, orgID, orgdomain.ListMembersRequest{
		Limit:  query.Limit,
		Offset: query.Offset,
		Query:  query.Query,
		Roles:  query.Roles,
	})
	if err != nil {
		return nil, mapOrgErr(err)
	}

	members := make([]directory.Member, 0, len(page.Members))
	for _, member := range page.Members {
		members = append(members, directory.Member{
			MembershipID: member.MembershipID,
			UserID:       member.UserID,
			Email:        member.Email,
			DisplayName:  member.DisplayName,
			Role:         member.Role,
			JoinedAt:     member.JoinedAt,
		})
	}
	return &directory.MemberPage{Members: members, TotalCount: page.TotalCount}, nil
}

func (s *service) CreateInvitation(ctx context.Context, actorID string, orgID string, req directory.InvitationRequest) (*directory.Invitation, error) {
	actor, err := parseID(actorID)
	if err != nil {
		return nil, directory.ErrInvalidArgument
	}
	invitation, err := s.orgs.Invite(ctx, actor, orgID, orgdomain.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		return nil, mapOrgErr(err)
	}
	return &directory.Invitation{
		ID:        invitation.ID,
		OrgID:     invitation.OrgID,
		Email:     invitation.Email,
		Role:      invitation.Role,
		Status:    invitation.Status,
		ExpiresAt: invitation.ExpiresAt,
	}, nil
}

func (s *service) UpdateOrganization(ctx context.Context, actorID string, orgID string, update directory.OrganizationUpdate) (*directory.Organization, error) {
	actor, err := parseID(actorID)
	if err != nil {
		return nil, directory.ErrInvalidArgument
	}
	org, err := s.orgs.Update(ctx, actor, orgID, orgdomain.UpdateOrganizationRequest{
		Name:     update.Name,
		Metadata: update.Metadata,
	})
	if err != nil {
		return nil, mapOrgErr(err)
	}
	return toOrganization(org), nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func toOrganization(org *orgdomain.OrganizationResponse) *directory.Organization {
	return &directory.Organization{
		ID:       org.ID,
		Name:     org.Name,
		Slug:     org.Slug,
		Metadata: org.Metadata,
	}
}

func mapAuthErr(err error) error {
	switch {
	case errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return directory.ErrUnauthenticated
	case errors.Is(err, authdomain.ErrUserNotFound):
		return directory.ErrNotFound
	default:
		return err
	}
}

func mapOrgErr(err error) error {
	switch {
	case errors.Is(err, orgdomain.ErrForbidden):
		return directory.ErrForbidden
	case errors.Is(err, orgdomain.ErrNotFound),
		errors.Is(err, orgdomain.ErrInvitationNotFound):
		return directory.ErrNotFound
	case errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidUser),
		errors.Is(err, orgdomain.ErrInvalidOrganization),
		errors.Is(err, orgdomain.ErrInvalidEmail),
		errors.Is(err, orgdomain.ErrInvalidRole),
		errors.Is(err, orgdomain.ErrAlreadyMember),
		errors.Is(err, orgdomain.ErrInvitationExpired),
		errors.Is(err, orgdomain.ErrInvitationResolved),
		errors.Is(err, orgdomain.ErrInvitationEmailMatch):
		return fmt.Errorf("%w: %s", directory.ErrInvalidArgument, err)
	default:
		return err
	}
}
