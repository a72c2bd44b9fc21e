package auth

import (
	"github.com/tidehub/workdesk/internal/auth/repository"
	"github.com/tidehub/workdesk/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
