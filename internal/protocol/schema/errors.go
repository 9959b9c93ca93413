package schema

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAttribute    = errors.New("schema: missing required attribute")
	ErrUnknownArgType      = errors.New("schema: unknown arg type")
	ErrInvalidNumber       = errors.New("schema: invalid numeric literal")
	ErrDuplicateInterface  = errors.New("schema: duplicate interface")
	ErrUnresolvedReference = errors.New("schema: unresolved reference")
	ErrInvalidDocument     = errors.New("schema: invalid document")
	ErrNoDocuments         = errors.New("schema: no documents")
)

// CompileError ties a compilation failure to the document it came from.
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("schema: %s: %v", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func compileErr(path string, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	return &CompileError{Path: path, Err: err}
}
