package ownership

import "go.uber.org/fx"

// Module provides the ownership resolver to Fx.
var Module = fx.Provide(NewResolver)
