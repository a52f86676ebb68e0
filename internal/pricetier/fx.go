package pricetier

import (
	"github.com/alimia7/achatons/internal/pricetier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricetier.service",
	fx.Provide(service.New),
)
