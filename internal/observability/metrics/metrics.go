package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

func (c Config) constLabels() prometheus.Labels {
	serviceName := strings.TrimSpace(c.ServiceName)
	if serviceName == "" {
		serviceName = "achatons"
	}
	environment := strings.TrimSpace(c.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// ProvideRegisterer returns the process-wide registerer served on /metrics.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
