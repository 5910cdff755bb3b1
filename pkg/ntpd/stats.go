package ntpd

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// wireStats exposes per-datagram counters in prometheus form. Each
// server owns its registry so multiple instances can coexist in one
// process.
type wireStats struct {
	registry  *prometheus.Registry
	datagrams *prometheus.CounterVec
	responses prometheus.Counter
	drops     *prometheus.CounterVec
}

func newWireStats() *wireStats {
	reg := prometheus.NewRegistry()

	datagrams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "datagrams",
		Name:      "received_total",
		Help:      "Datagrams received, by NTP mode",
	}, []string{"mode"})
	reg.MustRegister(datagrams)

	responses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "responses",
		Name:      "sent_total",
		Help:      "Responses sent",
	})
	reg.MustRegister(responses)

	drops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "datagrams",
		Name:      "dropped_total",
		Help:      "Datagrams that produced no response, by reason",
	}, []string{"reason"})
	reg.MustRegister(drops)

	return &wireStats{
		registry:  reg,
		datagrams: datagrams,
		responses: responses,
		drops:     drops,
	}
}

func (w *wireStats) incReceived(mode uint8) {
	w.datagrams.WithLabelValues(strconv.Itoa(int(mode))).Inc()
}

func (w *wireStats) incResponse() {
	w.responses.Inc()
}

func (w *wireStats) incDropped(reason string) {
	w.drops.WithLabelValues(reason).Inc()
}

// Handler serves the /metrics endpoint for this server's registry.
func (w *wireStats) Handler() http.Handler {
	return promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{})
}
