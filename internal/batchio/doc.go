// Package batchio loads task batches from CSV or line-delimited JSON
// files and writes result collections back out in the same two formats.
// Loading is streaming and fail-closed: every record passes through
// validation, and a batch with any invalid record never executes.
package batchio
