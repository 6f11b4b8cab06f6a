package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrFetch         = errors.New("fetch failed")
	ErrMalformedItem = errors.New("malformed item")
	ErrStore         = errors.New("store failure")
)

// FetchError reports a network, timeout, status or payload failure for one source.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s (%s): status %d: %v", e.Source, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error        { return e.Err }
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// MalformedItemError is returned for an item that is not an object or has no usable id.
type MalformedItemError struct {
	Source string
	Index  int
	Reason string
}

func (e *MalformedItemError) Error() string {
	return fmt.Sprintf("malformed item %d from %s: %s", e.Index, e.Source, e.Reason)
}

func (e *MalformedItemError) Is(target error) bool { return target == ErrMalformedItem }

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string        { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error        { return e.Err }
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// ValidationError rejects malformed inbound filter parameters or configuration.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }
