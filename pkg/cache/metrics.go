package cache

import (
	"context"
	"strings"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	MHits          = stats.Int64("cache/hits", "Number of cache hits", stats.UnitDimensionless)
	MMisses        = stats.Int64("cache/misses", "Number of cache misses", stats.UnitDimensionless)
	MBackendErrors = stats.Int64("cache/backend_errors", "Number of failed backend operations", stats.UnitDimensionless)
	MProduceMs     = stats.Float64("cache/produce_latency", "Producer latency in milliseconds", stats.UnitMilliseconds)
)

var (
	KeyCache, _ = tag.NewKey("cache")
	KeyOp, _    = tag.NewKey("op")
)

var (
	HitsView = &view.View{
		Name:        "cache/hits",
		Measure:     MHits,
		Description: "Cache hits per cache",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyCache},
	}

	MissesView = &view.View{
		Name:        "cache/misses",
		Measure:     MMisses,
		Description: "Cache misses per cache",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyCache},
	}

	BackendErrorsView = &view.View{
		Name:        "cache/backend_errors",
		Measure:     MBackendErrors,
		Description: "Backend failures per operation",
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{KeyCache, KeyOp},
	}

	ProduceLatencyView = &view.View{
		Name:        "cache/produce_latency",
		Measure:     MProduceMs,
		Description: "The distribution of producer latencies",
		Aggregation: view.Distribution(0, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000),
		TagKeys:     []tag.Key{KeyCache},
	}
)

// Views are the cache views to register with the exporter.
func Views() []*view.View {
	return []*view.View{HitsView, MissesView, BackendErrorsView, ProduceLatencyView}
}

// cacheName is the first segment of a key, e.g. "config" for "config:abc".
func cacheName(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func record(ctx context.Context, key string, m stats.Measurement, mutators ...tag.Mutator) {
	mutators = append(mutators, tag.Upsert(KeyCache, cacheName(key)))
	_ = stats.RecordWithTags(ctx, mutators, m)
}

func sinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Nanoseconds()) / 1e6
}
