package forms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	formValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_validations_total",
			Help: "Total number of form validation passes by result",
		},
		[]string{"result"},
	)

	formValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "form_validation_duration_seconds",
			Help:    "Form validation latency in seconds, both phases included",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)
