package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	interruptCounter, _    = meter.Int64Counter("orchestration.interrupts", metric.WithDescription("Interrupts received by source and whether they stopped playback"))
	droppedTurnCounter, _  = meter.Int64Counter("orchestration.turns.dropped", metric.WithDescription("Turns dropped after a transcription or response failure"))
	queuedResponseGauge, _ = meter.Int64UpDownCounter("orchestration.responses.queued", metric.WithDescription("Responses waiting for the active playback to end"))
)

func metricStage(stage string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("stage", stage))
}
