package server

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"robotctl/internal/repo"
)

const metricPrefix = "robotctl_"

type metrics struct {
	registry         *prometheus.Registry
	commandsAccepted prometheus.Counter
	commandsUpdated  prometheus.Counter
	authRejected     prometheus.Counter
}

// newMetrics builds a per-handler registry so multiple servers (tests
// included) never collide on collector registration.
func newMetrics(r repo.Repo, logger *log.Logger) *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		commandsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "commands_accepted_total",
			Help: "Commands accepted through the API",
		}),
		commandsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "commands_updated_total",
			Help: "Commands updated through the API",
		}),
		authRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "auth_rejected_total",
			Help: "Requests rejected by the bearer auth gate",
		}),
	}
	reg.MustRegister(m.commandsAccepted, m.commandsUpdated, m.authRejected)
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "commands_stored",
			Help: "Commands currently stored",
		},
		func() float64 {
			n, err := r.CountCommands(context.Background())
			if err != nil {
				if logger != nil {
					logger.Printf("metrics query failed: %v", err)
				}
				return 0
			}
			return float64(n)
		},
	))
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
