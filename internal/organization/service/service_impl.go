package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/observability/logger"
	"github.com/tidehub/workdesk/internal/organization/domain"
	"github.com/tidehub/workdesk/internal/providers/email"
	"github.com/tidehub/workdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	slugMaxAttempts     = 5
	invitationCodeBytes = 32
)

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	users   authdomain.Repository
	node    *snowflake.Node
	policy  *config.InvitePolicyHolder
	mailer  email.Provider
	baseURL string
	logger  *zap.Logger
}

// New creates the organization service.
func New(
	gdb *gorm.DB,
	repo domain.Repository,
	users authdomain.Repository,
	node *snowflake.Node,
	policy *config.InvitePolicyHolder,
	mailer email.Provider,
	cfg config.Config,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:      gdb,
		repo:    repo,
		users:   users,
		node:    node,
		policy:  policy,
		mailer:  mailer,
		baseURL: cfg.InviteURL,
		logger:  log,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	orgSlug, err := s.uniqueSlug(ctx, name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:        s.node.Generate(),
		Name:      name,
		Slug:      orgSlug,
		Metadata:  req.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if org.Metadata == nil {
		org.Metadata = map[string]any{}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return repo.AddMember(ctx, domain.OrganizationMember{
			ID:        s.node.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      domain.RoleAdmin,
			CreatedAt: now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrInvalidName
		}
		return nil, err
	}

	logger.FromContext(ctx).Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
	)

	return toOrganizationResponse(org), nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	orgID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return toOrganizationResponse(*org), nil
}

func (s *service) GetBySlug(ctx context.Context, orgSlug string) (*domain.OrganizationResponse, error) {
	orgSlug = strings.ToLower(strings.TrimSpace(orgSlug))
	if orgSlug == "" {
		return nil, domain.ErrNotFound
	}
	org, err := s.repo.GetOrganizationBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	return toOrganizationResponse(*org), nil
}

func (s *service) Update(ctx context.Context, actorID snowflake.ID, id string, req domain.UpdateOrganizationRequest) (*domain.OrganizationResponse, error) {
	orgID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.requireAdmin(ctx, orgID, actorID); err != nil {
		return nil, err
	}

	current, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Metadata != nil {
		// Profile edits patch individual fields, untouched keys survive.
		merged := datatypes.JSONMap{}
		for key, value := range current.Metadata {
			merged[key] = value
		}
		for key, value := range req.Metadata {
			if value == nil {
				delete(merged, key)
				continue
			}
			merged[key] = value
		}
		fields["metadata"] = merged
	}

	if err := s.repo.UpdateOrganization(ctx, orgID, fields); err != nil {
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return toOrganizationResponse(*org), nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.MembershipItem, error) {
	rows, err := s.repo.MembershipsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.MembershipItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.MembershipItem{
			OrgID:    row.OrgID.String(),
			Name:     row.Name,
			Slug:     row.Slug,
			Role:     row.Role,
			JoinedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (s *service) RoleOf(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	return s.repo.RoleOf(ctx, orgID, userID)
}

func (s *service) ListMembers(ctx context.Context, id string, req domain.ListMembersRequest) (*domain.MemberPage, error) {
	orgID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}

	roles := make([]string, 0, len(req.Roles))
	for _, raw := range req.Roles {
		role, ok := domain.NormalizeRole(raw)
		if !ok {
			return nil, domain.ErrInvalidRole
		}
		roles = append(roles, role)
	}
	req.Roles = roles

	rows, total, err := s.repo.ListMembers(ctx, orgID, req)
	if err != nil {
		return nil, err
	}

	members := make([]domain.MemberItem, 0, len(rows))
	for _, row := range rows {
		members = append(members, domain.MemberItem{
			MembershipID: row.MembershipID.String(),
			UserID:       row.UserID.String(),
			Email:        row.Email,
			DisplayName:  row.DisplayName,
			Role:         row.Role,
			JoinedAt:     row.CreatedAt,
		})
	}
	return &domain.MemberPage{Members: members, TotalCount: total}, nil
}

func (s *service) Invite(ctx context.Context, inviterID snowflake.ID, id string, req domain.InviteRequest) (*domain.InvitationResponse, error) {
	orgID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.requireAdmin(ctx, orgID, inviterID); err != nil {
		return nil, err
	}

	address, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	inviteeEmail := strings.ToLower(address.Address)

	role, ok := domain.NormalizeRole(req.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}
	policy := s.policy.Get()
	if !policy.RoleAllowed(role) {
		return nil, domain.ErrInvalidRole
	}

	if existing, err := s.users.FindByEmail(ctx, inviteeEmail); err == nil {
		memberRole, err := s.repo.RoleOf(ctx, orgID, existing.ID)
		if err != nil {
			return nil, err
		}
		if memberRole != "" {
			return nil, domain.ErrAlreadyMember
		}
	} else if !errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, err
	}

	ttl := policy.TTL
	if req.TTL > 0 && req.TTL < ttl {
		ttl = req.TTL
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	invitation := domain.OrganizationInvitation{
		ID:        s.node.Generate(),
		OrgID:     orgID,
		Email:     inviteeEmail,
		Role:      role,
		Status:    domain.InvitationPending,
		Code:      code,
		InvitedBy: inviterID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, invitation); err != nil {
		return nil, err
	}

	s.deliverInvitation(ctx, orgID, invitation)

	resp := toInvitationResponse(invitation)
	resp.Code = code
	return resp, nil
}

func (s *service) ListInvitations(ctx context.Context, actorID snowflake.ID, id string) ([]domain.InvitationResponse, error) {
	orgID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidOrganization
	}
	if err := s.requireAdmin(ctx, orgID, actorID); err != nil {
		return nil, err
	}

	invitations, err := s.repo.ListInvitations(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := make([]domain.InvitationResponse, 0, len(invitations))
	for _, invitation := range invitations {
		resp := toInvitationResponse(invitation)
		if invitation.Status == domain.InvitationPending && now.After(invitation.ExpiresAt) {
			resp.Status = domain.InvitationExpired
		}
		out = append(out, *resp)
	}
	return out, nil
}

func (s *service) AcceptInvitation(ctx context.Context, userID snowflake.ID, code string) (*domain.MembershipItem, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvitationNotFound
	}

	invitation, err := s.repo.GetInvitationByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if invitation.Status != domain.InvitationPending {
		return nil, domain.ErrInvitationResolved
	}

	now := time.Now().UTC()
	if now.After(invitation.ExpiresAt) {
		if err := s.repo.UpdateInvitationStatus(ctx, invitation.ID, domain.InvitationExpired, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvitationExpired
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInvalidUser
	}
	if !strings.EqualFold(user.Email, invitation.Email) {
		return nil, domain.ErrInvitationEmailMatch
	}

	memberRole, err := s.repo.RoleOf(ctx, invitation.OrgID, userID)
	if err != nil {
		return nil, err
	}
	if memberRole != "" {
		return nil, domain.ErrAlreadyMember
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddMember(ctx, domain.OrganizationMember{
			ID:        s.node.Generate(),
			OrgID:     invitation.OrgID,
			UserID:    userID,
			Role:      invitation.Role,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return repo.UpdateInvitationStatus(ctx, invitation.ID, domain.InvitationAccepted, now)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyMember
		}
		return nil, err
	}

	org, err := s.repo.GetOrganization(ctx, invitation.OrgID)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("invitation accepted",
		zap.String("org_id", invitation.OrgID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", invitation.Role),
	)

	return &domain.MembershipItem{
		OrgID:    org.ID.String(),
		Name:     org.Name,
		Slug:     org.Slug,
		Role:     invitation.Role,
		JoinedAt: now,
	}, nil
}

func (s *service) RevokeInvitation(ctx context.Context, actorID snowflake.ID, id string) error {
	invitationID, err := parseID(id)
	if err != nil {
		return domain.ErrInvitationNotFound
	}

	invitation, err := s.repo.GetInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, invitation.OrgID, actorID); err != nil {
		return err
	}
	if invitation.Status != domain.InvitationPending {
		return domain.ErrInvitationResolved
	}

	return s.repo.UpdateInvitationStatus(ctx, invitation.ID, domain.InvitationRevoked, time.Now().UTC())
}

func (s *service) requireAdmin(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) error {
	role, err := s.repo.RoleOf(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if role != domain.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

func (s *service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		return "", domain.ErrInvalidName
	}

	candidate := base
	for attempt := 2; attempt <= slugMaxAttempts; attempt++ {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}

	// Too many collisions on the name, fall back to a random suffix.
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(suffix)), nil
}

func (s *service) deliverInvitation(ctx context.Context, orgID snowflake.ID, invitation domain.OrganizationInvitation) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		logger.FromContext(ctx).Warn("invitation email skipped",
			zap.String("invitation_id", invitation.ID.String()),
			zap.Error(err),
		)
		return
	}

	link := fmt.Sprintf("%s?code=%s", s.baseURL, invitation.Code)
	msg := email.Message{
		To:      invitation.Email,
		Subject: fmt.Sprintf("You have been invited to %s", org.Name),
		Body: fmt.Sprintf(
			"You have been invited to join %s as %s.\n\nAccept the invitation:\n%s\n\nThe invitation expires at %s.\n",
			org.Name, invitation.Role, link, invitation.ExpiresAt.Format(time.RFC1123),
		),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		logger.FromContext(ctx).Warn("invitation email delivery failed",
			zap.String("invitation_id", invitation.ID.String()),
			zap.Error(err),
		)
	}
}

func generateCode() (string, error) {
	buf := make([]byte, invitationCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func toOrganizationResponse(org domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:       org.ID.String(),
		Name:     org.Name,
		Slug:     org.Slug,
		Metadata: org.Metadata,
	}
}

func toInvitationResponse(invitation domain.OrganizationInvitation) *domain.InvitationResponse {
	return &domain.InvitationResponse{
		ID:        invitation.ID.String(),
		OrgID:     invitation.OrgID.String(),
		Email:     invitation.Email,
		Role:      invitation.Role,
		Status:    invitation.Status,
		InvitedBy: invitation.InvitedBy.String(),
		ExpiresAt: invitation.ExpiresAt,
		CreatedAt: invitation.CreatedAt,
	}
}
