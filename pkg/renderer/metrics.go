package renderer

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyKind   = tag.MustNewKey("kind")
	keyResult = tag.MustNewKey("result")

	tilesRendered  = stats.Int64("pathtracer/tiles", "Tile jobs executed", stats.UnitDimensionless)
	tileLatency    = stats.Float64("pathtracer/tile_latency", "Time from tile submission to completion", stats.UnitMilliseconds)
	framesRendered = stats.Int64("pathtracer/frames", "Progressive frames completed", stats.UnitDimensionless)
)

// Views are the metric views exported by the renderer
var Views = []*view.View{
	{
		Name:        "pathtracer/tiles",
		Description: "Counter of tile jobs by kind and result",
		TagKeys:     []tag.Key{keyKind, keyResult},
		Measure:     tilesRendered,
		Aggregation: view.Count(),
	},
	{
		Name:        "pathtracer/tile_latency",
		Description: "Distribution of tile job latency",
		TagKeys:     []tag.Key{keyKind},
		Measure:     tileLatency,
		Aggregation: view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	},
	{
		Name:        "pathtracer/frames",
		Description: "Counter of completed frames",
		Measure:     framesRendered,
		Aggregation: view.Count(),
	},
}

// RegisterMetrics registers the renderer views with opencensus
func RegisterMetrics() error {
	return view.Register(Views...)
}

func recordTile(ctx context.Context, kind string, latency time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	stats.RecordWithOptions(
		ctx,
		stats.WithTags(
			tag.Insert(keyKind, kind),
			tag.Insert(keyResult, result),
		),
		stats.WithMeasurements(
			tilesRendered.M(1),
			tileLatency.M(float64(latency)/float64(time.Millisecond)),
		))
}

func recordFrame(ctx context.Context) {
	stats.Record(ctx, framesRendered.M(1))
}
