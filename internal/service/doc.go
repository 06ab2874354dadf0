// Package service contains the application-specific use cases of the
// batch runner. It orchestrates the load, execute, write cycle of a
// batch: streaming validated task requests from the loader, driving them
// sequentially through a transport, and writing the result collection
// back out.
//
// Services receive their dependencies (loader, transport, writer, logger)
// through constructor injection and depend only on domain entities and
// the execution-layer interfaces, never on specific infrastructure
// implementations.
package service
