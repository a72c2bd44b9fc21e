// Package workspace exposes the user-facing actions of the organization
// workspace. Mutations are gated on the actor's role before any directory
// mutation is issued, and every action reports a structured result instead
// of surfacing transport errors to the caller.
package workspace

import (
	"context"
	"errors"
	"strings"

	"github.com/tidehub/workdesk/internal/directory"
	"github.com/tidehub/workdesk/internal/observability/logger"
	"github.com/tidehub/workdesk/internal/observability/metrics"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
	"github.com/tidehub/workdesk/internal/ratelimit"
	"go.uber.org/zap"
)

// Result is the outcome of a workspace action. Message is user-facing.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// InviteResult carries the created invitation on success.
type InviteResult struct {
	Result
	Invitation *directory.Invitation `json:"invitation,omitempty"`
}

// OrganizationResult carries the organization on success.
type OrganizationResult struct {
	Result
	Organization *directory.Organization `json:"organization,omitempty"`
}

// MembersResult carries one member page on success.
type MembersResult struct {
	Result
	Page *directory.MemberPage `json:"page,omitempty"`
}

// Actions implements the workspace operations on top of the directory.
type Actions struct {
	dir     directory.Service
	limiter *ratelimit.InviteLimiter
	metrics *metrics.Metrics
}

func NewActions(dir directory.Service, limiter *ratelimit.InviteLimiter, m *metrics.Metrics) *Actions {
	return &Actions{dir: dir, limiter: limiter, metrics: m}
}

// InviteMember issues an invitation on behalf of the session's user. The
// actor must hold the admin role in the organization; non-admins are
// rejected before any directory mutation is attempted.
func (a *Actions) InviteMember(ctx context.Context, session *directory.Session, orgID, email, role string) InviteResult {
	if ok, message := a.requireAdmin(ctx, session, orgID); !ok {
		return InviteResult{Result: failure(message)}
	}

	if !a.limiter.Allow(ctx, orgID) {
		a.metrics.RecordRateLimitDenied(ctx, "invite")
		return InviteResult{Result: failure("Too many invitations right now, try again later")}
	}

	invitation, err := a.dir.CreateInvitation(ctx, session.UserID, orgID, directory.InvitationRequest{
		Email: strings.TrimSpace(email),
		Role:  role,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("invitation failed",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return InviteResult{Result: failure(actionMessage(err, "Failed to send invitation"))}
	}

	a.metrics.RecordInvitationCreated(ctx, invitation.Role)
	return InviteResult{
		Result:     success("Invitation sent"),
		Invitation: invitation,
	}
}

// UpdateOrganization patches the organization profile. Admin only.
func (a *Actions) UpdateOrganization(ctx context.Context, session *directory.Session, orgID string, update directory.OrganizationUpdate) OrganizationResult {
	if ok, message := a.requireAdmin(ctx, session, orgID); !ok {
		return OrganizationResult{Result: failure(message)}
	}

	org, err := a.dir.UpdateOrganization(ctx, session.UserID, orgID, update)
	if err != nil {
		logger.FromContext(ctx).Warn("organization update failed",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return OrganizationResult{Result: failure(actionMessage(err, "Failed to update organization"))}
	}

	return OrganizationResult{
		Result:       success("Organization updated"),
		Organization: org,
	}
}

// Members pages the organization's member table. Any member may read it.
func (a *Actions) Members(ctx context.Context, session *directory.Session, orgID string, query directory.MemberQuery) MembersResult {
	if _, ok, message := a.membershipRole(ctx, session, orgID); !ok {
		return MembersResult{Result: failure(message)}
	}

	page, err := a.dir.Members(ctx, orgID, query)
	if err != nil {
		logger.FromContext(ctx).Warn("member listing failed",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return MembersResult{Result: failure(actionMessage(err, "Failed to load members"))}
	}

	return MembersResult{Result: success(""), Page: page}
}

// OrgDetails fetches the organization record. Any member may read it.
func (a *Actions) OrgDetails(ctx context.Context, session *directory.Session, orgID string) OrganizationResult {
	if _, ok, message := a.membershipRole(ctx, session, orgID); !ok {
		return OrganizationResult{Result: failure(message)}
	}

	org, err := a.dir.Organization(ctx, orgID)
	if err != nil {
		logger.FromContext(ctx).Warn("organization fetch failed",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return OrganizationResult{Result: failure(actionMessage(err, "Failed to load organization"))}
	}

	return OrganizationResult{Result: success(""), Organization: org}
}

// VerifyAdmin reports whether the session's user holds the admin role in
// the organization. The settings view uses it to decide what to render.
func (a *Actions) VerifyAdmin(ctx context.Context, session *directory.Session, orgID string) Result {
	if ok, message := a.requireAdmin(ctx, session, orgID); !ok {
		return failure(message)
	}
	return success("")
}

// requireAdmin resolves the actor's role from their membership set and
// rejects everything below admin.
func (a *Actions) requireAdmin(ctx context.Context, session *directory.Session, orgID string) (bool, string) {
	role, ok, message := a.membershipRole(ctx, session, orgID)
	if !ok {
		return false, message
	}
	if role != orgdomain.RoleAdmin {
		return false, "You need the admin role to perform this action"
	}
	return true, ""
}

func (a *Actions) membershipRole(ctx context.Context, session *directory.Session, orgID string) (string, bool, string) {
	memberships, err := a.dir.Memberships(ctx, session.UserID)
	if err != nil {
		logger.FromContext(ctx).Warn("membership lookup failed",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
		return "", false, "Failed to verify your membership"
	}

	for _, m := range memberships {
		if m.OrgID != orgID {
			continue
		}
		role, known := orgdomain.NormalizeRole(m.Role)
		if !known {
			return "", false, "Your membership has an unrecognized role"
		}
		return role, true, ""
	}
	return "", false, "You are not a member of this organization"
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}

func failure(message string) Result {
	return Result{Success: false, Message: message}
}

// actionMessage keeps validation details visible to the user and hides
// transport noise behind a generic message.
func actionMessage(err error, fallback string) string {
	if errors.Is(err, directory.ErrInvalidArgument) {
		return err.Error()
	}
	if errors.Is(err, directory.ErrForbidden) {
		return "You need the admin role to perform this action"
	}
	if errors.Is(err, directory.ErrNotFound) {
		return "Organization not found"
	}
	return fallback
}
