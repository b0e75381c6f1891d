package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the bytes flowing through one transport type.
type Metrics struct {
	transportType string
	inBytes       *prometheus.CounterVec
	outBytes      *prometheus.CounterVec
}

var incomingCounterVec = newIncomingCounterVec()
var outgoingCounterVec = newOutgoingCounterVec()

func newIncomingCounterVec() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_transport_bytes_incoming",
			Help: "Total incoming bytes",
		},
		[]string{"transport_type"},
	)
	prometheus.MustRegister(c)
	return c
}

func newOutgoingCounterVec() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canopy_transport_bytes_outgoing",
			Help: "Total outgoing bytes",
		},
		[]string{"transport_type"},
	)
	prometheus.MustRegister(c)
	return c
}

// NewMetrics returns byte counters labeled with the given transport type.
func NewMetrics(transportType string) *Metrics {
	return &Metrics{
		transportType: transportType,
		inBytes:       incomingCounterVec,
		outBytes:      outgoingCounterVec,
	}
}

// CountIncoming adds to the incoming byte total.
func (m *Metrics) CountIncoming(n int) {
	m.inBytes.WithLabelValues(m.transportType).Add(float64(n))
}

// CountOutgoing adds to the outgoing byte total.
func (m *Metrics) CountOutgoing(n int) {
	m.outBytes.WithLabelValues(m.transportType).Add(float64(n))
}
