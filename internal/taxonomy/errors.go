package taxonomy

import "fmt"

// LoadError is returned when a persisted index is malformed: counts disagree,
// the version tag is missing or the payload cannot be decoded.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	path := e.Path
	if path == "" {
		path = "<stream>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("load taxonomy index %s: %s: %v", path, e.Message, e.Cause)
	}
	return fmt.Sprintf("load taxonomy index %s: %s", path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ModelMismatchError is returned when query phrases would be embedded by a
// different model than the one the index was built with.
type ModelMismatchError struct {
	IndexModel    string
	ProviderModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("embedding model mismatch: index built with %q, provider uses %q", e.IndexModel, e.ProviderModel)
}

// SourceError describes a problem in a taxonomy source file.
type SourceError struct {
	Path    string
	Line    int
	Message string
	Cause   error
}

func (e *SourceError) Error() string {
	location := e.Path
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("taxonomy source %s: %s: %v", location, e.Message, e.Cause)
	}
	return fmt.Sprintf("taxonomy source %s: %s", location, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}
