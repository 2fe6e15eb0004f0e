package module

import (
	"errors"
	"fmt"
)

// Build-time failures. All of them abort the build pass.
var (
	ErrDuplicatePage      = errors.New("duplicate page name")
	ErrDuplicateImportDir = errors.New("duplicate import directory")
	ErrUnresolvedFile     = errors.New("page file cannot be resolved")
	ErrInvalidPage        = errors.New("invalid page entry")
	ErrBuilderFinished    = errors.New("builder already finished")
)

// SetupError attributes a build failure to the module that caused it.
// Subject is the page name, file or directory involved.
type SetupError struct {
	Module  string
	Subject string
	Err     error
}

func (e *SetupError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("module %q: %v", e.Module, e.Err)
	}
	return fmt.Sprintf("module %q: %s: %v", e.Module, e.Subject, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
