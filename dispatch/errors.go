package dispatch

import "errors"

// ErrArityMismatch indicates an overload whose predicate count does not
// match the multimethod's declared dispatch positions.
var ErrArityMismatch = errors.New("arity mismatch")

// ErrNoMatchingOverload indicates a call for which no registered overload
// was eligible.
var ErrNoMatchingOverload = errors.New("no matching overload")

// ErrAmbiguousOverload indicates a call for which two or more overloads tie
// at the minimal total cost.
var ErrAmbiguousOverload = errors.New("ambiguous overload")
