package location

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a location id is outside the snapshot.
	ErrIndexOutOfRange = errors.New("location index out of range")

	// ErrMisalignedCategories is returned by the positional join when the
	// category sequences differ in length.
	ErrMisalignedCategories = errors.New("category sequences are not aligned")
)

// FetchError reports a failed category fetch (transport, remote or parse).
type FetchError struct {
	Provider Provider
	Category Category
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Provider, e.Category, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NormalizationError reports a malformed metadata or count field.
type NormalizationError struct {
	Field string
	Value string
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize field %q (value %q): %v", e.Field, e.Value, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// DateParseError reports a date column that is not M/D/YY.
type DateParseError struct {
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parse date %q: %v", e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

func indexError(id, n int) error {
	return fmt.Errorf("%w: id %d not in [0, %d)", ErrIndexOutOfRange, id, n)
}
