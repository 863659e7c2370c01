package dataset

import "fmt"

// ToleranceExceededError aborts dataset building when too many reads were
// skipped.
type ToleranceExceededError struct {
	Skipped int
	Total   int
	MaxRate float64
}

func (e *ToleranceExceededError) Error() string {
	return fmt.Sprintf("skipped %d of %d reads (%.1f%%), above tolerance of %.1f%%",
		e.Skipped, e.Total, 100*float64(e.Skipped)/float64(e.Total), 100*e.MaxRate)
}

// Rate returns the observed skip rate.
func (e *ToleranceExceededError) Rate() float64 {
	return float64(e.Skipped) / float64(e.Total)
}
