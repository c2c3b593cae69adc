package crs

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrUnknownCRS          = errors.New("unknown CRS")
	ErrMalformedDefinition = errors.New("malformed CRS definition")
	ErrTransformation      = errors.New("transformation failed")
	ErrResourceInit        = errors.New("CRS resource initialization failed")
)

// UnknownCRSError is returned when an identifier cannot be resolved.
type UnknownCRSError struct {
	ID  string
	Err error // optional cause, e.g. the last store error
}

func (e *UnknownCRSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unknown CRS %q: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("unknown CRS %q", e.ID)
}

func (e *UnknownCRSError) Is(target error) bool { return target == ErrUnknownCRS }
func (e *UnknownCRSError) Unwrap() error        { return e.Err }

// MalformedDefinitionError reports a syntax or semantic violation in a CRS
// definition, with the offending fragment and its byte offset.
type MalformedDefinitionError struct {
	Fragment string
	Offset   int
	Reason   string
}

func (e *MalformedDefinitionError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("malformed CRS definition at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("malformed CRS definition at offset %d near %q: %s", e.Offset, e.Fragment, e.Reason)
}

func (e *MalformedDefinitionError) Is(target error) bool { return target == ErrMalformedDefinition }

// TransformationError is returned when a chain cannot be built or a
// numeric step is undefined.
type TransformationError struct {
	Source string
	Target string
	Reason string
	Err    error
}

func (e *TransformationError) Error() string {
	msg := fmt.Sprintf("transform %s -> %s: %s", e.Source, e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformationError) Is(target error) bool { return target == ErrTransformation }
func (e *TransformationError) Unwrap() error        { return e.Err }

// ResourceInitError reports that a definition store could not be read.
// It fails the lookup that triggered it, never the whole registry.
type ResourceInitError struct {
	Store string
	Err   error
}

func (e *ResourceInitError) Error() string {
	return fmt.Sprintf("initializing CRS store %s: %v", e.Store, e.Err)
}

func (e *ResourceInitError) Is(target error) bool { return target == ErrResourceInit }
func (e *ResourceInitError) Unwrap() error        { return e.Err }
