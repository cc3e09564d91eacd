package bill

import (
	"github.com/smallbiznis/dairy/internal/bill/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("bill",
	fx.Provide(repository.Provide),
)
