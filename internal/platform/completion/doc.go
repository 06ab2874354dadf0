// Package completion provides the live single-attempt client for the
// upstream chat-completion service. It converts task requests to the wire
// shape, performs exactly one HTTP call per invocation, maps upstream
// status codes to the failure taxonomy at the response site, and prices
// reported token usage from a static per-model table.
package completion
