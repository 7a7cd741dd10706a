// Package metrics exposes Prometheus instrumentation for the emission
// pipeline and the folio pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BoletasEmitidas counts persisted records by final SII status.
	BoletasEmitidas = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boletas_emitidas_total",
		Help: "Boletas persistidas, por estado SII final.",
	}, []string{"estado"})

	// BoletasFicticias counts placeholder receipts (no real folio available
	// or gateway failure after the early ack).
	BoletasFicticias = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boletas_ficticias_total",
		Help: "Boletas ficticias emitidas por falta de folios o error del gateway.",
	})

	// ErroresSII counts failed gateway calls by pipeline step.
	ErroresSII = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sii_errores_total",
		Help: "Errores de llamadas al gateway SimpleAPI/SII, por paso.",
	}, []string{"paso"})

	// FoliosRestantes is the remaining capacity across all CAF ranges as of
	// the last allocation or watchdog tick.
	FoliosRestantes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "folios_restantes",
		Help: "Folios disponibles en los CAF por sobre el ultimo folio usado.",
	})

	// AlertasFolios counts low-capacity alert mails actually sent.
	AlertasFolios = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alertas_folios_total",
		Help: "Alertas de folios bajos enviadas por correo.",
	})
)
