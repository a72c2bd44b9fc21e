package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tidehub/workdesk/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) UpdateOrganization(ctx context.Context, orgID snowflake.ID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", orgID).
		Updates(fields).Error
}

func (r *repository) GetOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", orgID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).
		First(&org, "slug = ?", strings.ToLower(strings.TrimSpace(slug))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *repository) MembershipsByUser(ctx context.Context, userID snowflake.ID) ([]domain.MembershipRow, error) {
	var rows []domain.MembershipRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id AS org_id, o.name, o.slug, m.role, m.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY m.created_at ASC`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) RoleOf(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (string, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return member.Role, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID, req domain.ListMembersRequest) ([]domain.MemberRow, int64, error) {
	base := r.db.WithContext(ctx).
		Table("organization_members m").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.org_id = ?", orgID)

	if query := strings.TrimSpace(req.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		base = base.Where("LOWER(u.email) LIKE ? OR LOWER(u.display_name) LIKE ?", like, like)
	}
	if len(req.Roles) > 0 {
		base = base.Where("m.role IN ?", req.Roles)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []domain.MemberRow
	err := base.Session(&gorm.Session{}).
		Select("m.id AS membership_id, u.id AS user_id, u.email, u.display_name, m.role, m.created_at").
		Order("m.created_at ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *repository) CreateInvitation(ctx context.Context, invitation domain.OrganizationInvitation) error {
	return r.db.WithContext(ctx).Create(&invitation).Error
}

func (r *repository) GetInvitation(ctx context.Context, invitationID snowflake.ID) (*domain.OrganizationInvitation, error) {
	var invitation domain.OrganizationInvitation
	err := r.db.WithContext(ctx).First(&invitation, "id = ?", invitationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) GetInvitationByCode(ctx context.Context, code string) (*domain.OrganizationInvitation, error) {
	var invitation domain.OrganizationInvitation
	err := r.db.WithContext(ctx).First(&invitation, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) ListInvitations(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationInvitation, error) {
	var invitations []domain.OrganizationInvitation
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) UpdateInvitationStatus(ctx context.Context, invitationID snowflake.ID, status string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.OrganizationInvitation{}).
		Where("id = ?", invitationID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		}).Error
}
