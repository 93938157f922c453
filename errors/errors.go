package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in request processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module compilation and export checks
	PhaseBind     Phase = "bind"     // host function registration
	PhaseValidate Phase = "validate" // registry conformance checks
	PhaseMarshal  Phase = "marshal"  // host/guest memory transfer
	PhaseDispatch Phase = "dispatch" // capability call handling
	PhaseRequest  Phase = "request"  // request lifecycle
	PhaseResource Phase = "resource" // external resource access
	PhaseAuth     Phase = "auth"     // session and authorization
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds       Kind = "out_of_bounds"
	KindAllocation        Kind = "allocation"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindMissingBinding    Kind = "missing_binding"
	KindUnknownFunction   Kind = "unknown_function"
	KindMissingExport     Kind = "missing_export"
	KindInvalidData       Kind = "invalid_data"
	KindNotInitialized    Kind = "not_initialized"
	KindExhausted         Kind = "exhausted"
	KindState             Kind = "state"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindRegistration      Kind = "registration"
	KindInstantiation     Kind = "instantiation"
	KindResource          Kind = "resource"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Func     string // capability function, when one is involved
	Expected string
	Actual   string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Func != "" {
		b.WriteString(" at ")
		b.WriteString(e.Func)
	}

	if e.Expected != "" || e.Actual != "" {
		b.WriteString(": expected ")
		b.WriteString(e.Expected)
		b.WriteString(", got ")
		b.WriteString(e.Actual)
	}

	if e.Detail != "" {
		if e.Expected != "" || e.Actual != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Func sets the capability function name
func (b *Builder) Func(name string) *Builder {
	b.err.Func = name
	return b
}

// Expected sets the expected form for mismatch errors
func (b *Builder) Expected(s string) *Builder {
	b.err.Expected = s
	return b
}

// Actual sets the observed form for mismatch errors
func (b *Builder) Actual(s string) *Builder {
	b.err.Actual = s
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// OutOfBounds reports a guest memory range outside the current memory size.
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) exceeds memory size %d", offset, uint64(offset)+uint64(length), size),
	}
}

// AllocationFailed reports a guest allocator failure. Fatal to the request.
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("guest allocator failed for %d bytes", size),
		Cause:  cause,
	}
}

// SignatureMismatch reports a binding whose wire signature diverges from the registry.
func SignatureMismatch(fn, expected, actual string) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindSignatureMismatch,
		Func:     fn,
		Expected: expected,
		Actual:   actual,
	}
}

// MissingBinding reports a registry entry with no implementation.
func MissingBinding(fn string) *Error {
	return &Error{
		Phase: PhaseValidate,
		Kind:  KindMissingBinding,
		Func:  fn,
	}
}

// UnknownFunction reports an implementation absent from the registry.
func UnknownFunction(fn string) *Error {
	return &Error{
		Phase: PhaseValidate,
		Kind:  KindUnknownFunction,
		Func:  fn,
	}
}

// MissingExport reports a guest module lacking a required export.
func MissingExport(name, detail string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingExport,
		Func:   name,
		Detail: detail,
	}
}

// NotInitialized reports a missing component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// Exhausted reports a bounded pool with no free capacity.
func Exhausted(what string) *Error {
	return &Error{
		Phase:  PhaseResource,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("%s exhausted", what),
	}
}

// State reports an operation invalid in the current state. Non-fatal.
func State(detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseRequest,
		Kind:   KindState,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// Resource reports an external resource failure (database, outbound HTTP,
// filesystem). Surfaced to guests as error-flagged return values, never as
// traps.
func Resource(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseResource,
		Kind:   KindResource,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidData reports malformed input
func InvalidData(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// Registration reports a host function registration failure
func Registration(module, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", module, name),
		Cause:  cause,
	}
}

// Instantiation reports a guest instantiation failure
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRequest,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load reports a module loading failure
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Mismatch is a single binding validation failure.
type Mismatch struct {
	Module   string // wire module, e.g. "env"
	Func     string
	Expected string // expanded registry signature, "" when the binding is extraneous
	Actual   string // bound signature, "" when the binding is missing
}

func (m Mismatch) String() string {
	switch {
	case m.Actual == "":
		return fmt.Sprintf("%s#%s: no binding (want %s)", m.Module, m.Func, m.Expected)
	case m.Expected == "":
		return fmt.Sprintf("%s#%s: bound %s but absent from registry", m.Module, m.Func, m.Actual)
	default:
		return fmt.Sprintf("%s#%s: expected %s, got %s", m.Module, m.Func, m.Expected, m.Actual)
	}
}

// BindingMismatchError aggregates every registry conformance failure so a
// single validation pass reports the whole drift, not the first entry.
type BindingMismatchError struct {
	Mismatches []Mismatch
}

func (e *BindingMismatchError) Error() string {
	if len(e.Mismatches) == 0 {
		return "[validate] signature_mismatch: no mismatches recorded"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d binding mismatch(es):\n", len(e.Mismatches))

	byModule := make(map[string][]Mismatch)
	var order []string
	for _, m := range e.Mismatches {
		if _, seen := byModule[m.Module]; !seen {
			order = append(order, m.Module)
		}
		byModule[m.Module] = append(byModule[m.Module], m)
	}
	sort.Strings(order)

	for _, mod := range order {
		b.WriteString("\n  ")
		b.WriteString(mod)
		b.WriteString(":\n")
		for _, m := range byModule[mod] {
			b.WriteString("    - ")
			b.WriteString(m.String())
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *BindingMismatchError) Is(target error) bool {
	_, ok := target.(*BindingMismatchError)
	return ok
}
