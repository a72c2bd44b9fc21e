package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/tidehub/workdesk/internal/auth"
	authdomain "github.com/tidehub/workdesk/internal/auth/domain"
	"github.com/tidehub/workdesk/internal/auth/session"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/directory"
	directorylocal "github.com/tidehub/workdesk/internal/directory/local"
	directoryrest "github.com/tidehub/workdesk/internal/directory/rest"
	"github.com/tidehub/workdesk/internal/migration"
	"github.com/tidehub/workdesk/internal/observability"
	"github.com/tidehub/workdesk/internal/organization"
	orgdomain "github.com/tidehub/workdesk/internal/organization/domain"
	"github.com/tidehub/workdesk/internal/orgsync"
	"github.com/tidehub/workdesk/internal/providers/email"
	"github.com/tidehub/workdesk/internal/ratelimit"
	"github.com/tidehub/workdesk/internal/server"
	"github.com/tidehub/workdesk/internal/workspace"
	"github.com/tidehub/workdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		email.Module,
		auth.Module,
		session.Module,
		organization.Module,
		fx.Provide(newDirectory),
		orgsync.Module,
		ratelimit.Module,
		workspace.Module,
		migration.Module,
		server.Module,
	).Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			nodeID = parsed
		}
	}
	return snowflake.NewNode(nodeID)
}

func newDirectory(cfg config.Config, authSvc authdomain.Service, orgSvc orgdomain.Service, log *zap.Logger) directory.Service {
	if cfg.IsHosted() {
		return directoryrest.New(cfg, log)
	}
	return directorylocal.New(authSvc, orgSvc)
}
