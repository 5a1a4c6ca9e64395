package interrupt

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core/interrupt"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	triggerCounter, _ = meter.Int64Counter("interrupt.triggers", metric.WithDescription("Interrupt triggers observed by source"))
)
