package simulator

import "fmt"

// SimError reports a rejected fireworks configuration or viewport. The
// simulator never returns it from a frame step: once constructed, a
// Simulator only fails on Resize and UpdateConfig.
type SimError struct {
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("fireworks: %s", e.Message)
}

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(msg string) error {
	return SimError{Message: fmt.Sprintf("invalid config: %s", msg)}
}
