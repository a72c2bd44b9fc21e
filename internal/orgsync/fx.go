package orgsync

import "go.uber.org/fx"

var Module = fx.Module("orgsync",
	fx.Provide(NewReconciler),
)
