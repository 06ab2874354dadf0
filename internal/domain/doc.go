// Package domain contains the core business entities of the batch runner:
// task requests and responses, token usage and cost figures, dry-run
// estimates, and the validation rules applied to every record before a
// batch is allowed to execute. It is independent of any specific
// infrastructure or delivery mechanism.
package domain
