package registry

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownObject    = errors.New("registry: unknown object id")
	ErrFreedObject      = errors.New("registry: object id already freed")
	ErrNotActive        = errors.New("registry: object not active")
	ErrUnexpectedDelete = errors.New("registry: delete_id for object not pending destroy")
	ErrIDInUse          = errors.New("registry: object id already in use")
	ErrIDRange          = errors.New("registry: object id outside allowed range")
	ErrIDExhausted      = errors.New("registry: client id space exhausted")
	ErrInvalidVersion   = errors.New("registry: invalid interface version")
	ErrUnknownOpcode    = errors.New("registry: unknown opcode")
)

// VersionError reports a message used on an object bound below the
// message's since-version.
type VersionError struct {
	Interface string
	Message   string
	Since     uint32
	Version   uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("registry: %s.%s requires version %d, object bound at %d", e.Interface, e.Message, e.Since, e.Version)
}
