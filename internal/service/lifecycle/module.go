package lifecycle

import "go.uber.org/fx"

// Module provides the lifecycle coordinator to Fx.
var Module = fx.Provide(NewCoordinator)
