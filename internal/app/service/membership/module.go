package membership

import "go.uber.org/fx"

// Module exposes the lifecycle engine via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
