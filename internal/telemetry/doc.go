// Package telemetry provides OpenTelemetry initialization and helpers
// for tracing cache lookups, invalidation jobs and outbound GraphQL calls.
//
// Traces and logs are exported over OTLP/HTTP.
package telemetry
