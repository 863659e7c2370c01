package signal

import "fmt"

// InvalidSignalError is returned for empty or non-finite signal. It is fatal
// for the read only.
type InvalidSignalError struct {
	ReadID  string
	Reason  string
	Samples int
}

func (e *InvalidSignalError) Error() string {
	if e.ReadID != "" {
		return fmt.Sprintf("invalid signal for read %s: %s (%d samples)", e.ReadID, e.Reason, e.Samples)
	}
	return fmt.Sprintf("invalid signal: %s (%d samples)", e.Reason, e.Samples)
}

func (e *InvalidSignalError) IsReadError() {}
