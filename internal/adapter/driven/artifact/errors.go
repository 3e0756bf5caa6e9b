// Package artifact implements BinarySource for local files, HTTP URLs and S3 objects.
package artifact

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the binary sources.
var (
	// ErrNotFound indicates the location resolved to nothing.
	ErrNotFound = errors.New("binary not found")
	// ErrAmbiguous indicates a glob matched more than one file.
	ErrAmbiguous = errors.New("binary location matches more than one file")
	// ErrAccessDenied indicates the source refused access.
	ErrAccessDenied = errors.New("access to binary denied")
)

// SourceError describes a failed open.
type SourceError struct {
	Source   string
	Location string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source: %s: %v", e.Source, e.Location, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
