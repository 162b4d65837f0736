package tender

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/buildmart/internal/service/lifecycle"
)

// Module provides the tender service to Fx. It doubles as the cache evicter
// used after acceptances and by the worker.
var Module = fx.Provide(
	fx.Annotate(NewService, fx.As(fx.Self()), fx.As(new(lifecycle.CacheEvicter))),
)
