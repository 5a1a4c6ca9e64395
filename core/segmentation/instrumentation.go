package segmentation

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core/segmentation"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	utteranceCounter, _    = meter.Int64Counter("segmentation.utterances", metric.WithDescription("Utterances emitted by segmentation"))
	droppedFrameCounter, _ = meter.Int64Counter("segmentation.frames.dropped", metric.WithDescription("Frames dropped while capture was paused"))
	flushedFrameCounter, _ = meter.Int64Counter("segmentation.frames.flushed", metric.WithDescription("Buffered frames discarded on pause"))
)
