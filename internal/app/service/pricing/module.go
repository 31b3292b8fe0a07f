package pricing

import "go.uber.org/fx"

// Module exposes the pricing authority via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
