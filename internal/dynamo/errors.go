package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for model, projection and sensing operations.
var (
	// ErrUnknownLink indicates a query referenced a link absent from the chain.
	ErrUnknownLink = errors.New("dynamo: unknown link")

	// ErrDimensionMismatch indicates a vector or matrix of the wrong size for the chain's dof or task dimension.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrNumericalSingularity indicates an inversion that had to be regularized or damped.
	ErrNumericalSingularity = errors.New("dynamo: numerically singular matrix")

	// ErrAttachmentInvalid indicates a sensor whose link no longer exists in the model.
	ErrAttachmentInvalid = errors.New("dynamo: sensor attachment invalid")

	// ErrStaleState indicates a query issued before the first model update.
	ErrStaleState = errors.New("dynamo: model queried before first update")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// LinkError wraps an error with the operation and link it concerns.
type LinkError struct {
	Op   string
	Link string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Link, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

// UnknownLink returns a LinkError wrapping ErrUnknownLink.
func UnknownLink(op, link string) error {
	return &LinkError{Op: op, Link: link, Err: ErrUnknownLink}
}

// DimensionError reports a size mismatch. Want and Got are formatted as
// "rows x cols" for matrices or a plain length for vectors.
type DimensionError struct {
	Op   string
	What string
	Want string
	Got  string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s has size %s, want %s", e.Op, e.What, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// CheckLen returns a DimensionError when len(v) != want.
func CheckLen(op, what string, v []float64, want int) error {
	if len(v) == want {
		return nil
	}
	return &DimensionError{
		Op:   op,
		What: what,
		Want: fmt.Sprint(want),
		Got:  fmt.Sprint(len(v)),
	}
}

// CheckDims returns a DimensionError when (r, c) != (wantR, wantC). A negative
// want value matches any size along that axis.
func CheckDims(op, what string, r, c, wantR, wantC int) error {
	if (wantR < 0 || r == wantR) && (wantC < 0 || c == wantC) {
		return nil
	}
	return &DimensionError{
		Op:   op,
		What: what,
		Want: dimString(wantR) + "x" + dimString(wantC),
		Got:  fmt.Sprintf("%dx%d", r, c),
	}
}

func dimString(n int) string {
	if n < 0 {
		return "*"
	}
	return fmt.Sprint(n)
}
