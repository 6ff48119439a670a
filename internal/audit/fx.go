package audit

import (
	"github.com/retailops/incidentd/internal/audit/repository"
	"github.com/retailops/incidentd/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
