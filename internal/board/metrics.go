package board

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leadMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_lead_moves_total",
			Help: "Lead stage moves by outcome",
		},
		[]string{"outcome"},
	)

	columnReorders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "board_column_reorders_total",
			Help: "Column reorders applied to the stage order store",
		},
	)

	movesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "board_lead_moves_in_flight",
			Help: "Lead moves waiting on the CRM API",
		},
	)
)

func recordMove(outcome Outcome) {
	leadMoves.WithLabelValues(string(outcome)).Inc()
}
