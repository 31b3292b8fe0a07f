package membership

import "go.uber.org/fx"

// Module exposes the membership service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
