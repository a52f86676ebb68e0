package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingRules are the operator-tunable knobs of the pricing engine.
type PricingRules struct {
	MaxTiers          int    `mapstructure:"max_tiers"`
	UrgentDays        int    `mapstructure:"urgent_days"`
	FewUnitsThreshold int64  `mapstructure:"few_units_threshold"`
	CurrencyLabel     string `mapstructure:"currency_label"`

	// MaxParticipationQuantity caps the units one participation may claim.
	MaxParticipationQuantity int64 `mapstructure:"max_participation_quantity"`
}

func DefaultPricingRules() PricingRules {
	return PricingRules{
		MaxTiers:          5,
		UrgentDays:        2,
		FewUnitsThreshold: 5,
		CurrencyLabel:     "FCFA",

		MaxParticipationQuantity: 10000,
	}
}

type PricingRulesHolder struct {
	current atomic.Value // holds PricingRules
}

// NewStaticPricingRulesHolder returns a holder that never reloads.
func NewStaticPricingRulesHolder(rules PricingRules) *PricingRulesHolder {
	holder := &PricingRulesHolder{}
	holder.current.Store(rules)
	return holder
}

func NewPricingRulesHolder() (*PricingRulesHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/achatons")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ACHATONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingRules()
	v.SetDefault("pricing.max_tiers", defaults.MaxTiers)
	v.SetDefault("pricing.urgent_days", defaults.UrgentDays)
	v.SetDefault("pricing.few_units_threshold", defaults.FewUnitsThreshold)
	v.SetDefault("pricing.currency_label", defaults.CurrencyLabel)
	v.SetDefault("pricing.max_participation_quantity", defaults.MaxParticipationQuantity)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var rules PricingRules
	if err := v.UnmarshalKey("pricing", &rules); err != nil {
		return nil, err
	}
	if err := validatePricingRules(rules); err != nil {
		return nil, err
	}

	holder := NewStaticPricingRulesHolder(rules)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingRules
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingRules(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingRulesHolder) Get() PricingRules {
	return h.current.Load().(PricingRules)
}

func validatePricingRules(rules PricingRules) error {
	if rules.MaxTiers < 1 {
		return errors.New("pricing.max_tiers must be at least 1")
	}
	if rules.UrgentDays < 0 {
		return errors.New("pricing.urgent_days cannot be negative")
	}
	if rules.FewUnitsThreshold < 1 {
		return errors.New("pricing.few_units_threshold must be at least 1")
	}
	if strings.TrimSpace(rules.CurrencyLabel) == "" {
		return errors.New("pricing.currency_label cannot be empty")
	}
	if rules.MaxParticipationQuantity < 1 {
		return errors.New("pricing.max_participation_quantity must be at least 1")
	}
	return nil
}
