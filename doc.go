// Package recordgate is a protocol gateway between the legacy XML execute
// endpoint and a strongly-typed in-process command model. Inbound envelopes
// are decoded into typed Messages, dispatched to an external record engine,
// and the arbitrary typed result is re-encoded into the wire shape legacy
// clients expect, byte-for-byte.
//
// The four core pieces are the type registry (an immutable message-shape and
// enum index built once at startup), the value codec (a recursive
// encoder/decoder for the closed set of wire value kinds), the request
// decoder (ambiguity-resolving message-node location and name extraction),
// and the response encoder (namespace-qualified result wrapping and fault
// envelopes).
//
// Around the core sit thin surfaces: a chi-served HTTP endpoint (POST
// envelopes, GET a minimal service description), an emulated OAuth token
// endpoint, Prometheus metrics, OpenTelemetry tracing, and an in-process
// audit bus carrying one event per executed message.
//
// A minimal setup builds a registry from registry.Builtin(), constructs a
// server.Server around an engine.Executor, and serves its Router; see
// cmd/recordgate for a complete wiring.
package recordgate
