package coap

import (
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	MLatencyMs    = stats.Float64("gateway/coap/latency", "The latency in milliseconds per request", stats.UnitMilliseconds)
	MRequests     = stats.Int64("gateway/coap/requests", "Number of requests", stats.UnitDimensionless)
	MPayloadBytes = stats.Int64("gateway/coap/payload_bytes", "Payload bytes per request or response", stats.UnitBytes)
)

var (
	KeyMethod, _ = tag.NewKey("method")
	KeyStatus, _ = tag.NewKey("status")
	KeyFormat, _ = tag.NewKey("format")
	KeyFeed, _   = tag.NewKey("feed")
)

var (
	LatencyView = &view.View{
		Name:        "gateway/coap/latency",
		Measure:     MLatencyMs,
		Description: "The distribution of the latencies",
		Aggregation: view.Distribution(0, 25, 50, 75, 100, 200, 400, 600, 800, 1000, 2000, 4000, 6000),
		TagKeys:     []tag.Key{KeyMethod},
	}

	RequestsCountView = &view.View{
		Name:        "gateway/coap/requests",
		Measure:     MRequests,
		Description: "Number of requests",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyMethod},
	}

	PayloadBytesView = &view.View{
		Name:        "gateway/coap/payload_bytes",
		Measure:     MPayloadBytes,
		Description: "Total payload bytes per feed and status",
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{KeyFeed, KeyFormat, KeyStatus},
	}
)

// Views are the gateway views to register with the exporter.
func Views() []*view.View {
	return []*view.View{LatencyView, RequestsCountView, PayloadBytesView}
}

func sinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}
