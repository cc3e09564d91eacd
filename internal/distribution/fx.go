package distribution

import (
	"github.com/smallbiznis/dairy/internal/distribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("distribution.service",
	fx.Provide(service.New),
)
