package lifecycle

import "go.uber.org/fx"

// Module provides the lifecycle transactor to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(Transactor))),
)
