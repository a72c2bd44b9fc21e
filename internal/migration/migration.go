// Package migration brings the local schema up to date and optionally seeds
// a first organization for fresh installs.
package migration

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	"github.com/tidehub/workdesk/internal/config"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(Run),
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Config config.Config
	Auth   authdomain.Service
	Orgs   orgdomain.Service
	Node   *snowflake.Node
	Logger *zap.Logger
}

// Run migrates the schema. Hosted mode keeps only the session-side tables;
// the remote directory owns the rest.
func Run(p Params) error {
	models := []any{
		&authdomain.User{},
		&authdomain.Session{},
	}
	if !p.Config.IsHosted() {
		models = append(models,
			&orgdomain.Organization{},
			&orgdomain.OrganizationMember{},
			&orgdomain.OrganizationInvitation{},
		)
	}

	if err := p.DB.AutoMigrate(models...); err != nil {
		return err
	}
	p.Logger.Info("schema migrated", zap.Int("models", len(models)))

	if p.Config.Bootstrap.Enabled && !p.Config.IsHosted() {
		return bootstrap(p)
	}
	return nil
}

// bootstrap creates the admin user and the default organization once.
// Re-runs are no-ops keyed on the admin email.
func bootstrap(p Params) error {
	ctx := context.Background()
	boot := p.Config.Bootstrap

	if boot.AdminPassword == "" {
		p.Logger.Warn("bootstrap enabled but no admin password set, skipping")
		return nil
	}

	user, err := p.Auth.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:    boot.AdminEmail,
		Password: boot.AdminPassword,
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrUserExists) {
			p.Logger.Info("bootstrap admin already exists", zap.String("email", boot.AdminEmail))
			return nil
		}
		return err
	}

	org, err := p.Orgs.Create(ctx, user.ID, orgdomain.CreateOrganizationRequest{
		Name: boot.OrgName,
	})
	if err != nil {
		return err
	}

	p.Logger.Info("bootstrap organization created",
		zap.String("org_id", org.ID),
		zap.String("slug", org.Slug),
		zap.String("admin", boot.AdminEmail),
	)
	return nil
}
