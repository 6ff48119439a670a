package incident

import (
	"github.com/retailops/incidentd/internal/incident/repository"
	"github.com/retailops/incidentd/internal/incident/service"
	"go.uber.org/fx"
)

var Module = fx.Module("incident.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
