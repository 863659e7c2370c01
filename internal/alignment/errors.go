package alignment

import "fmt"

// AlignmentFailureError reports a read that could not be aligned well
// enough to be used for supervised extraction.
type AlignmentFailureError struct {
	ReadID      string
	Reason      string
	Identity    float64
	MinIdentity float64
}

func (e *AlignmentFailureError) Error() string {
	if e.ReadID == "" {
		return fmt.Sprintf("alignment failed: %s (identity %.3f, minimum %.3f)", e.Reason, e.Identity, e.MinIdentity)
	}
	return fmt.Sprintf("read %s: alignment failed: %s (identity %.3f, minimum %.3f)",
		e.ReadID, e.Reason, e.Identity, e.MinIdentity)
}

// IsReadError marks per-read failures that callers skip rather than abort on.
func (e *AlignmentFailureError) IsReadError() {}
