// Package metrics registers the server's Prometheus instruments,
// exposed on the admin listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts dispatched commands by name.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkv",
		Name:      "commands_total",
		Help:      "Commands dispatched, by command name.",
	}, []string{"command"})

	// ConnectedClients tracks live client connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zkv",
		Name:      "connected_clients",
		Help:      "Currently connected clients.",
	})

	// ReplicationOffset mirrors the primary's propagation offset.
	ReplicationOffset = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zkv",
		Name:      "replication_offset_bytes",
		Help:      "Primary replication offset in bytes.",
	})
)
