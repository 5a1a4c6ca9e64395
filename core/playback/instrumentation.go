package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core/playback"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	jobCounter, _            = meter.Int64Counter("playback.jobs", metric.WithDescription("Playback jobs by outcome"))
	synthesisDuration, _     = meter.Float64Histogram("playback.synthesis.duration", metric.WithDescription("Time spent synthesizing speech"), metric.WithUnit("s"))
	synthesisRetryCounter, _ = meter.Int64Counter("playback.synthesis.retries", metric.WithDescription("Synthesis attempts that were retried"))
)
