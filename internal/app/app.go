package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/buildmart/internal/cache"
	"github.com/Additional-Code/buildmart/internal/config"
	"github.com/Additional-Code/buildmart/internal/database"
	"github.com/Additional-Code/buildmart/internal/events"
	"github.com/Additional-Code/buildmart/internal/identity"
	"github.com/Additional-Code/buildmart/internal/logger"
	"github.com/Additional-Code/buildmart/internal/messaging"
	"github.com/Additional-Code/buildmart/internal/observability"
	repositoryapplication "github.com/Additional-Code/buildmart/internal/repository/application"
	repositorycompany "github.com/Additional-Code/buildmart/internal/repository/company"
	repositorylifecycle "github.com/Additional-Code/buildmart/internal/repository/lifecycle"
	repositorytender "github.com/Additional-Code/buildmart/internal/repository/tender"
	grpcserver "github.com/Additional-Code/buildmart/internal/server/grpc"
	httpserver "github.com/Additional-Code/buildmart/internal/server/http"
	serviceapplication "github.com/Additional-Code/buildmart/internal/service/application"
	servicecompany "github.com/Additional-Code/buildmart/internal/service/company"
	servicelifecycle "github.com/Additional-Code/buildmart/internal/service/lifecycle"
	serviceownership "github.com/Additional-Code/buildmart/internal/service/ownership"
	servicetender "github.com/Additional-Code/buildmart/internal/service/tender"
	transporthttp "github.com/Additional-Code/buildmart/internal/transport/http"
	"github.com/Additional-Code/buildmart/internal/worker"
	workerlifecycle "github.com/Additional-Code/buildmart/internal/worker/lifecycle"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	events.Module,
	repositorytender.Module,
	repositoryapplication.Module,
	repositorycompany.Module,
	repositorylifecycle.Module,
	serviceownership.Module,
	servicetender.Module,
	servicelifecycle.Module,
	serviceapplication.Module,
	servicecompany.Module,
)

// HTTP wires the HTTP transport and the gRPC health endpoint on top of the core modules.
var HTTP = fx.Options(
	Core,
	identity.Module,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerlifecycle.Module,
)

// Module is the default application wiring.
var Module = HTTP
