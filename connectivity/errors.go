package connectivity

import "fmt"

// ErrServiceNotFound is returned when Call targets a service with no handler.
type ErrServiceNotFound struct {
	Service string
}

func (e *ErrServiceNotFound) Error() string {
	return fmt.Sprintf("connectivity: service not routable: %s", e.Service)
}

// ErrServiceDisabled is returned when Call targets a disabled service.
type ErrServiceDisabled struct {
	Service string
}

func (e *ErrServiceDisabled) Error() string {
	return fmt.Sprintf("connectivity: service disabled: %s", e.Service)
}

// ErrCallTimeout is returned when a call exceeds the Timeout middleware's limit.
type ErrCallTimeout struct {
	Service string
}

func (e *ErrCallTimeout) Error() string {
	return fmt.Sprintf("connectivity: call timeout: %s", e.Service)
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return "connectivity: handler panicked"
}
