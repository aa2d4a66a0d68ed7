package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus de la capa de replicación. Viven en un paquete
// standalone para evitar ciclos de import entre record/controlplane y HTTP.

var (
	RecordWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ramify_record_writes_total",
		Help: "Escrituras de records por destino (main|both|main-only)",
	}, []string{"status"})

	RecordReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ramify_record_reads_total",
		Help: "Lecturas de records por procedencia (main|branch)",
	}, []string{"provenance"})

	ControlPlaneRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ramify_controlplane_requests_total",
		Help: "Llamadas al control plane por operación y resultado",
	}, []string{"op", "outcome"})

	BranchDialSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ramify_branch_dial_seconds",
		Help:    "Latencia de apertura de conexiones a branch endpoints",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	BranchSoftFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ramify_branch_soft_failures_total",
		Help: "Operaciones de branch degradadas silenciosamente a primary",
	})

	DigestHandshakes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ramify_digest_handshakes_total",
		Help: "Challenges Digest respondidos contra el control plane",
	})

	RateLimitRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ramify_rate_limit_rejections_total",
		Help: "Requests rechazados por exceder la ventana de rate limit",
	})
)

// Register registra las métricas en el registry dado (o el default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		RecordWrites, RecordReads, ControlPlaneRequests, BranchDialSeconds, BranchSoftFailures,
		DigestHandshakes, RateLimitRejections,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
