package participation

import (
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/internal/participation/domain"
	"github.com/alimia7/achatons/internal/participation/repository"
	"github.com/alimia7/achatons/internal/participation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("participation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	// The offer recompute path reads its ledger from participations.
	fx.Provide(func(r domain.Repository) offerdomain.LedgerReader { return r }),
)
