package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactNotFound is returned when the model artifact (or one of its
	// weight shards) is unreachable or answered with a non-success status.
	ErrArtifactNotFound = errors.New("model artifact not found")

	// ErrArtifactParse is returned when the artifact cannot be deserialized
	// into a valid decoder graph.
	ErrArtifactParse = errors.New("model artifact could not be parsed")

	// ErrBufferReleased is returned when a released pixel buffer is read or
	// released again.
	ErrBufferReleased = errors.New("pixel buffer already released")

	// ErrAlreadyStarted is returned when the controller is asked to load twice.
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrShapeMismatch is returned when the decoder output does not fit the grid.
	ErrShapeMismatch = errors.New("decoder output does not match grid shape")
)

// LoadErrorKind classifies artifact failures.
type LoadErrorKind string

const (
	LoadNotFound LoadErrorKind = "not_found"
	LoadParse    LoadErrorKind = "parse_error"
)

// LoadError describes why the decoder could not be loaded.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

// NewLoadError builds a LoadError of the given kind.
func NewLoadError(kind LoadErrorKind, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can write
// errors.Is(err, ErrArtifactNotFound) without caring about the wrapping.
func (e *LoadError) Is(target error) bool {
	switch e.Kind {
	case LoadNotFound:
		return target == ErrArtifactNotFound
	case LoadParse:
		return target == ErrArtifactParse
	}
	return false
}

// LoadErrorKindOf extracts the kind of a load failure, if err is one.
func LoadErrorKindOf(err error) (LoadErrorKind, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}
