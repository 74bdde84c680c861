package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metahand_records_captured_total",
		Help: "Anzahl der erfassten Records nach Typ und Aktion.",
	}, []string{"record_type", "action"})

	validationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metahand_validation_results_total",
		Help: "Validierungsergebnisse nach Record-Typ und Status.",
	}, []string{"record_type", "status"})

	registryLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metahand_registry_lookups_total",
		Help: "Registry-Lookups nach Registry und Ausgang.",
	}, []string{"registry", "outcome"})
)
