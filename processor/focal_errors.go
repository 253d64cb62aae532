package processor

import "errors"

// Precondition failures. They are returned before any computation starts.
var (
	ErrInvalidWindow        = errors.New("invalid window")
	ErrUnsupportedStatistic = errors.New("unsupported statistic")
	ErrEmptyGrid            = errors.New("empty grid")
	ErrGridShape            = errors.New("grid data does not match its shape")
	ErrShapeMismatch        = errors.New("grid shapes differ")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrInvalidMask          = errors.New("invalid mask")
)

// IsPrecondition reports whether err is a caller error rather than an
// I/O or internal failure.
func IsPrecondition(err error) bool {
	for _, e := range []error{ErrInvalidWindow, ErrUnsupportedStatistic, ErrEmptyGrid, ErrGridShape,
		ErrShapeMismatch, ErrUnsupportedOperation, ErrInvalidMask} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
