package xcollection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidType is returned when a value is neither a Dataset nor a
	// DataArray.
	ErrInvalidType = errors.New("expected a Dataset or DataArray")
	// ErrInvalidKey is returned for keys a collection cannot hold or persist.
	ErrInvalidKey = errors.New("invalid key")
	// ErrUnnamedDataArray is returned when converting a DataArray without a
	// name.
	ErrUnnamedDataArray = errors.New("unable to convert unnamed DataArray to a Dataset without providing an explicit name")
	// ErrInvalidMode is returned by Choose for modes other than "any" and "all".
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidFilterBy is returned by Filter for selectors other than
	// "key", "value" and "item".
	ErrInvalidFilterBy = errors.New("invalid by")
	// ErrNotCallable is returned when a combinator is handed a nil or
	// mistyped function.
	ErrNotCallable = errors.New("argument must be a callable function")
	// ErrNotImplemented marks options the persistence layer refuses.
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnsupportedFormat is returned for unknown file formats and engines.
	ErrUnsupportedFormat = errors.New("file format not supported")
	// ErrWeightsMissingValues is returned when weights contain NaN.
	ErrWeightsMissingValues = errors.New("weights cannot contain missing values")
	// ErrDimensionMismatch is returned when variables disagree on the size
	// of a shared dimension.
	ErrDimensionMismatch = errors.New("conflicting dimension sizes")
	// ErrMissingDimensions is returned by weighted reductions over dimensions
	// neither the dataset nor the weights carry.
	ErrMissingDimensions = errors.New("missing dimensions")
)

// KeyError reports a lookup of a key or variable name that does not exist.
type KeyError struct {
	Key string
	msg string
}

func (e *KeyError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("Dataset with key: `%s` not found", e.Key)
}

func newKeyError(key string) *KeyError { return &KeyError{Key: key} }

func missingVarsError(names []string) *KeyError {
	return &KeyError{
		Key: strings.Join(names, ","),
		msg: fmt.Sprintf("No data variables: `%v` found in dataset", names),
	}
}

// ValidationError reports a value rejected on insertion into a Collection.
//
// The underlying reason can be accessed via errors.Unwrap.
type ValidationError struct {
	Key   string
	cause error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validating %q: %s", e.Key, e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// IsKeyError reports whether err is, or wraps, a *KeyError.
func IsKeyError(err error) bool {
	var ke *KeyError
	return errors.As(err, &ke)
}
