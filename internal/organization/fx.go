package organization

import (
	"github.com/tidehub/workdesk/internal/organization/repository"
	"github.com/tidehub/workdesk/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
