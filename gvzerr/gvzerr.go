// Package gvzerr defines the sentinel error taxonomy shared across the
// archive, codec, and pipeline packages.
package gvzerr

import "errors"

var (
	// ErrOpenFailure: source or archive could not be opened for the requested mode.
	ErrOpenFailure = errors.New("gvz: open failure")
	// ErrCorruptArchive: footer missing, stream id not found, or a part's
	// declared size does not match the bytes available.
	ErrCorruptArchive = errors.New("gvz: corrupt archive")
	// ErrCorruptInput: a per-column stream decodes into a structure that
	// violates its invariants.
	ErrCorruptInput = errors.New("gvz: corrupt input")
	// ErrOutOfMemory: a ColumnBuffer or decoded payload cannot be allocated.
	ErrOutOfMemory = errors.New("gvz: out of memory")
	// ErrCancelled: a worker discovered the pipeline already failed.
	ErrCancelled = errors.New("gvz: cancelled")
	// ErrProtocolError: Set/Get attempted while not in the corresponding open mode.
	ErrProtocolError = errors.New("gvz: protocol error")
)
