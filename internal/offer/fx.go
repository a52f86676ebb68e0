package offer

import (
	"github.com/alimia7/achatons/internal/offer/repository"
	"github.com/alimia7/achatons/internal/offer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("offer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
