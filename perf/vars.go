package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	StepLatency         = metric.NewHistogram("1m1s")
	SentVectorPerSecond = metric.NewCounter("10s1s")
	RecvVectorPerSecond = metric.NewCounter("10s1s")
	DroppedPerSecond    = metric.NewCounter("10s1s")
	SupersededPerSecond = metric.NewCounter("10s1s")
	RelayedPerSecond    = metric.NewCounter("10s1s")
	RouteChanges        = metric.NewCounter("1h1m")
	SentBytesPerSecond  = metric.NewCounter("10s1s")
	RecvBytesPerSecond  = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))

	expvar.Publish("dvr:SentVector/s", SentVectorPerSecond)
	expvar.Publish("dvr:RecvVector/s", RecvVectorPerSecond)
	expvar.Publish("dvr:Dropped/s", DroppedPerSecond)
	expvar.Publish("dvr:Superseded/s", SupersededPerSecond)
	expvar.Publish("dvr:Relayed/s", RelayedPerSecond)
	expvar.Publish("dvr:RouteChanges", RouteChanges)
	expvar.Publish("dvr:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("dvr:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("dvr:StepLatency (µs)", StepLatency)
}
