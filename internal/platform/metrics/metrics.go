package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addon_vote_requests_total",
		Help: "Total de requisicoes de voto recebidas",
	}, []string{"status"})

	geoLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "addon_geo_lookups_total",
		Help: "Consultas de geolocalizacao por resultado",
	}, []string{"result"})

	geoLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "addon_geo_lookup_duration_seconds",
		Help:    "Tempo gasto na consulta externa de geolocalizacao",
		Buckets: prometheus.DefBuckets,
	})

	storeWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "addon_store_write_duration_seconds",
		Help:    "Tempo para gravar o conjunto de votos",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveGeoLookup(result string) {
	geoLookupsTotal.WithLabelValues(result).Inc()
}

func ObserveGeoLookupDuration(seconds float64) {
	geoLookupDuration.Observe(seconds)
}

func ObserveStoreWrite(seconds float64) {
	storeWriteDuration.Observe(seconds)
}
