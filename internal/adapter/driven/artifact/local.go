package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ericfisherdev/fwchecks/internal/domain/port/driven"
)

var _ driven.BinarySource = (*LocalSource)(nil)

const fileScheme = "file://"

// LocalSource reads binaries from the local filesystem. Locations may be
// doublestar globs ("build/**/app-*.bin") that must match exactly one file.
type LocalSource struct{}

// NewLocalSource creates a LocalSource.
func NewLocalSource() *LocalSource {
	return &LocalSource{}
}

// Supports reports whether location is a plain path or a file:// URI.
func (s *LocalSource) Supports(location string) bool {
	return strings.HasPrefix(location, fileScheme) || !strings.Contains(location, "://")
}

// Open resolves location and opens the file it names.
func (s *LocalSource) Open(_ context.Context, location string) (*driven.Binary, error) {
	path, err := s.resolve(strings.TrimPrefix(location, fileScheme))
	if err != nil {
		return nil, &SourceError{Source: "local", Location: location, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = ErrNotFound
		} else if os.IsPermission(err) {
			err = ErrAccessDenied
		}
		return nil, &SourceError{Source: "local", Location: location, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &SourceError{Source: "local", Location: location, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, &SourceError{Source: "local", Location: location, Err: fmt.Errorf("%s is a directory", path)}
	}

	return &driven.Binary{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Body:     f,
	}, nil
}

// resolve expands a glob to its single match. Plain paths pass through.
func (s *LocalSource) resolve(pattern string) (string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return pattern, nil
	}

	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return "", fmt.Errorf("invalid glob pattern %q", pattern)
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("globbing %q: %w", pattern, err)
	}

	switch len(matches) {
	case 0:
		return "", ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, strings.Join(matches, ", "))
	}
}
