// Package telemetry exports scheduler activity of a reactive.Runtime.
//
// Both exporters implement reactive.Instrumentation and are installed with
// reactive.WithInstrumentation:
//
//	metrics := telemetry.Prometheus(telemetry.WithNamespace("myapp"))
//	tracer := telemetry.OpenTelemetry()
//	rt := reactive.New(reactive.WithInstrumentation(reactive.Multi(metrics, tracer)))
package telemetry
