// Package metrics holds the Prometheus collectors shared by the search,
// listener, advertise and monitor packages. They register with the default
// registry and are exposed by the server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ssdp"

var (
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "searches_total",
		Help:      "Total number of searches started, per UPnP version and mode (multicast/unicast)",
	}, []string{"version", "mode"})
	SearchResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "responses_total",
		Help:      "Total number of search responses received, per outcome (accepted/dropped)",
	}, []string{"outcome"})
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Wall time of completed searches",
		Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 6},
	})
	SearchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "search",
		Name:      "errors_total",
		Help:      "Total number of socket errors during searches, per kind (setup/io)",
	}, []string{"kind"})

	AdvertisementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "listener",
		Name:      "advertisements_total",
		Help:      "Total number of advertisements received, per NTS (ssdp:alive/ssdp:byebye/ssdp:update)",
	}, []string{"nts"})
	ListenerDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "listener",
		Name:      "dropped_total",
		Help:      "Total number of datagrams dropped by listeners, per reason (malformed/queue_full/unsupported)",
	}, []string{"reason"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "advertise",
		Name:      "notifications_sent_total",
		Help:      "Total number of NOTIFY messages sent, per NTS",
	}, []string{"nts"})

	DevicesPresent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "devices_present",
		Help:      "Number of USNs currently tracked as present",
	})
	DeviceEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "monitor",
		Name:      "events_total",
		Help:      "Total number of presence events, per type (appeared/updated/gone)",
	}, []string{"type"})
)

// Label values
const (
	ModeMulticast = "multicast"
	ModeUnicast   = "unicast"

	OutcomeAccepted = "accepted"
	OutcomeDropped  = "dropped"

	ErrorKindSetup = "setup"
	ErrorKindIO    = "io"

	DropMalformed   = "malformed"
	DropQueueFull   = "queue_full"
	DropUnsupported = "unsupported"
)
