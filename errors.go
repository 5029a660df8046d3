package agenticmemory

import "github.com/sathvikkurap/agenticmemory/internal/errs"

// Kind is the category of a store failure. Every public operation in this
// package returns errors whose Kind can be recovered with KindOf, so
// callers can branch on failure type without string matching.
type Kind = errs.Kind

// Error is the concrete error type returned by every public operation.
type Error = errs.Error

// Failure kinds surfaced by store, query, prune, save, load, open, and
// checkpoint operations. Each constant's doc in internal/errs says when
// that kind is raised.
const (
	KindDimensionMismatch = errs.DimensionMismatch
	KindCapacityExceeded  = errs.CapacityExceeded
	KindIoError           = errs.IoError
	KindMalformedSnapshot = errs.MalformedSnapshot
	KindNotFound          = errs.NotFound
	KindInvalidArgument   = errs.InvalidArgument
)

// KindOf extracts the Kind from err, returning "" if err did not
// originate from this package.
func KindOf(err error) Kind {
	return errs.KindOf(err)
}

func newDimensionMismatch(op, msg string) error {
	return errs.New(errs.DimensionMismatch, op, msg)
}

func newCapacityExceeded(op, msg string) error {
	return errs.New(errs.CapacityExceeded, op, msg)
}

func newInvalidArgument(op, msg string) error {
	return errs.New(errs.InvalidArgument, op, msg)
}

func newNotFound(op, msg string) error {
	return errs.New(errs.NotFound, op, msg)
}

func newIoError(op, msg string, cause error) error {
	return errs.Wrap(errs.IoError, op, msg, cause)
}

func newMalformedSnapshot(op, msg string, cause error) error {
	return errs.Wrap(errs.MalformedSnapshot, op, msg, cause)
}
