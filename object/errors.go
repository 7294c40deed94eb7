package object

import "errors"

// ErrInvalidClass indicates a nil, unregistered or foreign value was used
// where a registered class is required.
var ErrInvalidClass = errors.New("invalid class")

// ErrDuplicateHook indicates an attempt to redefine an operator hook that
// the class has already defined.
var ErrDuplicateHook = errors.New("duplicate hook definition")
