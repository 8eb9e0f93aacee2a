package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Checkout struct {
	Attempts      *prometheus.CounterVec
	Compensations *prometheus.CounterVec
	Duration      prometheus.Histogram
}

func NewCheckout(reg prometheus.Registerer) *Checkout {
	c := &Checkout{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialshop",
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Checkout attempts by terminal result.",
		}, []string{"result"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialshop",
			Subsystem: "checkout",
			Name:      "compensations_total",
			Help:      "Compensating actions run after a failed saga step.",
		}, []string{"action"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "socialshop",
			Subsystem: "checkout",
			Name:      "duration_ms",
			Help:      "Checkout saga duration in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}
	reg.MustRegister(c.Attempts, c.Compensations, c.Duration)
	return c
}

type Recharge struct {
	Resolutions *prometheus.CounterVec
}

func NewRecharge(reg prometheus.Registerer) *Recharge {
	r := &Recharge{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialshop",
			Subsystem: "wallet",
			Name:      "recharge_resolutions_total",
			Help:      "Recharge resolutions by decision and outcome.",
		}, []string{"decision", "outcome"}),
	}
	reg.MustRegister(r.Resolutions)
	return r
}

func Handler() http.Handler {
	return promhttp.Handler()
}
