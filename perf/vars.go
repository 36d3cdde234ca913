package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency          = metric.NewHistogram("1m1s")
	AdvertisementsSent       = metric.NewCounter("10m10s")
	AdvertisementsSuppressed = metric.NewCounter("10m10s")
	RepairsSent              = metric.NewCounter("10m10s")
	DiscoverySent            = metric.NewCounter("10m10s")
	ProbesSent               = metric.NewCounter("1m1s")
	PredictionMisses         = metric.NewCounter("10m10s")
	LatencySamples           = metric.NewHistogram("10m10s")
	MessagesDropped          = metric.NewCounter("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("fuzzyrpl:Advertisements", AdvertisementsSent)
	expvar.Publish("fuzzyrpl:Suppressed", AdvertisementsSuppressed)
	expvar.Publish("fuzzyrpl:Repairs", RepairsSent)
	expvar.Publish("fuzzyrpl:Discovery", DiscoverySent)
	expvar.Publish("fuzzyrpl:Probes", ProbesSent)
	expvar.Publish("fuzzyrpl:PredictionMisses", PredictionMisses)
	expvar.Publish("fuzzyrpl:ArrivalLatency (ms)", LatencySamples)
	expvar.Publish("fuzzyrpl:Dropped", MessagesDropped)
	expvar.Publish("fuzzyrpl:DispatchLatency (µs)", DispatchLatency)
}
