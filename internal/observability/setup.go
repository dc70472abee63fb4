package observability

import (
	"context"

	"github.com/honeynil/wallet-service/internal/infrastructure/observability"
)

// Setup initializes logging, metrics and tracing and returns the tracer
// shutdown function.
func Setup(serviceName string) func(context.Context) error {
	observability.InitLogger()
	observability.InitMetrics()
	return observability.InitTracing(serviceName)
}
