// Package errors provides the classified error primitives used across sitepipe.
//
// Errors carry a category (config, task, generator, compile, ...), a severity,
// a user-action flag and a context map. Packages return plain wrapped errors
// internally and classify at their boundaries; the CLI adapter turns a
// classified error into a user-facing message and an exit code.
//
// Example usage:
//
//	err := errors.WrapError(runErr, errors.CategoryGenerator, "site generator failed").
//		WithContext("exit_code", code).
//		Build()
package errors
