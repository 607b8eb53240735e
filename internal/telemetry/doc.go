// Package telemetry wires OpenTelemetry tracing and metrics for notesd.
//
// When enabled, spans and metric instruments created through the global otel
// providers are exported over OTLP (gRPC or HTTP/protobuf) to a collector.
// When disabled, the global no-op providers stay in place and instrumented code
// runs unchanged.
//
// Telemetry never prevents notesd from starting: exporter setup failures mark
// the instance degraded and fall back to no-op providers.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory:
//
//	tel := telemetry.NewTestTelemetry()
//	svc, _ := notes.NewService(st, eng, nil, logger, notes.WithTracerProvider(tel.TracerProvider()))
//	...
//	tel.AssertSpanExists(t, "notes.continue")
package telemetry
