package http

import (
	"go.uber.org/fx"

	applicationtransport "github.com/Additional-Code/buildmart/internal/transport/http/application"
	companytransport "github.com/Additional-Code/buildmart/internal/transport/http/company"
	tendertransport "github.com/Additional-Code/buildmart/internal/transport/http/tender"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	tendertransport.Module,
	applicationtransport.Module,
	companytransport.Module,
)
