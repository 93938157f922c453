// Package errors provides structured error types for the host/guest bridge.
//
// Errors are categorized by Phase (where in request processing the error
// occurred) and Kind (error category). Only load-time signature mismatches
// and out-of-bounds memory access abort a request; everything else resolves
// to a value the guest can check.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindSignatureMismatch).
//		Func("env#string_concat").
//		Expected("(i32,i32,i32,i32)->i32").
//		Actual("(i32,i32)->i32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMarshal, offset, length, size)
//	err := errors.Exhausted("instance pool")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
