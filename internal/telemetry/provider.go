package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	instrumentationName    = "github.com/rcliao/checkpoint-splitter"
	instrumentationVersion = "1.0.0"
)

// NewTracerProvider builds a process-local TracerProvider tagged with
// serviceName. The CLI has no metrics/tracing backend of its own to
// export to, so it registers sampled spans against an SDK provider
// with no attached exporter — span creation, attributes, and the
// sampling decision all still run; an operator wiring in a real
// collector only needs to add
// sdktrace.WithBatcher(exporter) here. The caller must call Shutdown.
func NewTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}
