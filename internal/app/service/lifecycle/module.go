package lifecycle

import "go.uber.org/fx"

// Module exposes the lifecycle state machine via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
