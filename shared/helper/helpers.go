// Package helper holds small typed-extraction helpers shared by the packages
// that read untyped state.
package helper

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("value not found")
	ErrUnexpectedType = errors.New("unexpected type")
)

// GetTypedValueOf asserts the result of getFn to T.
func GetTypedValueOf[T any](getFn func() (any, error)) (T, error) {
	var zero T

	res, err := getFn()
	if err != nil {
		return zero, fmt.Errorf("failed to get value: %w", err)
	}

	val, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrUnexpectedType, res)
	}
	return val, nil
}

// LookupTyped adapts a comma-ok lookup to GetTypedValueOf. A missing value
// reports ErrNotFound.
func LookupTyped[T any](lookup func() (any, bool)) (T, error) {
	return GetTypedValueOf[T](func() (any, error) {
		v, ok := lookup()
		if !ok {
			return nil, ErrNotFound
		}
		return v, nil
	})
}

// MustGetTypedValue panics where GetTypedValueOf would fail.
func MustGetTypedValue[T any](getFn func() (any, error)) T {
	res, err := GetTypedValueOf[T](getFn)
	if err != nil {
		panic(err)
	}
	return res
}
