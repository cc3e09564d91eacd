package distributororder

import (
	"github.com/smallbiznis/dairy/internal/distributororder/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("distributororder",
	fx.Provide(repository.Provide),
)
