package csrf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrf_validations_total",
			Help: "Total number of CSRF token validations by result and failure reason",
		},
		[]string{"result", "reason"},
	)

	tokensGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csrf_tokens_generated_total",
			Help: "Total number of signed CSRF tokens generated",
		},
	)

	gateRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csrf_gate_rejections_total",
			Help: "Total number of requests rejected by the CSRF gate",
		},
		[]string{"reason"},
	)
)
