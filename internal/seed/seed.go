package seed

import (
	"context"
	"errors"
	"time"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const demoSupplierID = "demo-supplier"

type demoOffer struct {
	slug        string
	title       string
	description string
	categoryID  string
	basePrice   int64
	target      int64
	tiers       []pricetierdomain.TierInput
}

var demoOffers = []demoOffer{
	{
		slug:        "demo-riz-parfume-25kg",
		title:       "Riz parfumé 25kg",
		description: "Sac de riz parfumé, livraison groupée.",
		categoryID:  "alimentation",
		basePrice:   18500,
		target:      50,
		tiers: []pricetierdomain.TierInput{
			{MinParticipants: 10, Price: 17500},
			{MinParticipants: 25, Price: 16500},
			{MinParticipants: 50, Price: 15000, Label: "Prix grossiste"},
		},
	},
	{
		slug:        "demo-huile-palme-5l",
		title:       "Huile de palme 5L",
		description: "Bidon d'huile de palme raffinée.",
		categoryID:  "alimentation",
		basePrice:   6000,
		target:      20,
	},
}

// EnsureDemoOffers inserts the demo catalogue. Offers are matched by slug, so
// running it again leaves existing rows and their aggregates untouched.
func EnsureDemoOffers(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) (int, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}
	if node == nil {
		return 0, errors.New("seed id generator is required")
	}

	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, demo := range demoOffers {
			ok, err := ensureOfferTx(ctx, tx, node, demo, now)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func ensureOfferTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, demo demoOffer, now time.Time) (bool, error) {
	var existing offerdomain.Offer
	err := tx.WithContext(ctx).Where("slug = ?", demo.slug).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	offer := &offerdomain.Offer{
		ID:                 node.Generate(),
		Title:              demo.title,
		Slug:               demo.slug,
		Description:        demo.description,
		SupplierID:         demoSupplierID,
		CategoryID:         demo.categoryID,
		BasePrice:          demo.basePrice,
		Currency:           "XOF",
		PricingModel:       offerdomain.PricingModelFixed,
		TargetParticipants: demo.target,
		Status:             offerdomain.StatusActive,
		CurrentPrice:       demo.basePrice,
		CreatedAt:          now,
	}
	if len(demo.tiers) > 0 {
		tiers := pricetierdomain.NormalizeTiers(pricetierdomain.FromInputs(demo.tiers), demo.basePrice)
		if err := pricetierdomain.ValidateTiers(tiers, demo.basePrice, len(tiers)); err != nil {
			return false, err
		}
		offer.PricingModel = offerdomain.PricingModelTiered
		offer.PricingTiers = tiers
	}
	offer.Reresolve(now)

	if err := tx.WithContext(ctx).Create(offer).Error; err != nil {
		return false, err
	}
	return true, nil
}
