package batch

import "errors"

// ErrDimensionMismatch reports a file whose array size differs from the
// rest of the batch.
var ErrDimensionMismatch = errors.New("array dimensions differ")
