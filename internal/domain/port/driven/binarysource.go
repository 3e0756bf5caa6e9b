package driven

import (
	"context"
	"io"
)

// Binary is an opened firmware image ready for upload.
type Binary struct {
	Filename string
	Size     int64 // -1 when unknown.
	Body     io.ReadCloser
}

// BinarySource opens firmware images from a location string.
type BinarySource interface {
	// Supports reports whether this source handles the location.
	Supports(location string) bool
	// Open returns the binary at location. The caller closes Body.
	Open(ctx context.Context, location string) (*Binary, error)
}
