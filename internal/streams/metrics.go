package streams

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	launchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camview_player_launch_total",
		Help: "Total number of player launch attempts by result",
	}, []string{"result"})

	exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camview_player_exit_total",
		Help: "Total number of player exits by classification",
	}, []string{"kind"})

	sweepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camview_player_sweep_total",
		Help: "Total number of pattern sweeps that found running players",
	}, []string{"reason", "mode"})

	activePlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "camview_player_active",
		Help: "Number of devices with a tracked player process",
	})
)
