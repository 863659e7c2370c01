package checkpoint

import "fmt"

// ConfigMismatchError is returned when a checkpoint is used with settings
// other than those it was trained with.
type ConfigMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("checkpoint %s configuration mismatch: trained with %s, got %s", e.Field, e.Want, e.Got)
}

// CorruptCheckpointError reports an unreadable checkpoint blob.
type CorruptCheckpointError struct {
	Reason string
	Err    error
}

func (e *CorruptCheckpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt checkpoint: %s: %v", e.Reason, e.Err)
	}
	return "corrupt checkpoint: " + e.Reason
}

func (e *CorruptCheckpointError) Unwrap() error {
	return e.Err
}
