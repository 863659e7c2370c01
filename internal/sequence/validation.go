package sequence

import "fmt"

// Error is implemented by every validation error in this package.
type Error interface {
	error
	IsSequenceError()
}

// EmptySequenceError reports a sequence with no bases.
type EmptySequenceError struct {
	ID string
}

func (e *EmptySequenceError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("sequence %s has no bases", e.ID)
	}
	return "sequence has no bases"
}

func (e *EmptySequenceError) IsSequenceError() {}

// InvalidBaseError reports a character outside A, C, G, T and N.
type InvalidBaseError struct {
	ID       string
	Position int
	Found    byte
}

func (e *InvalidBaseError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("sequence %s: invalid base %q at position %d", e.ID, e.Found, e.Position)
	}
	return fmt.Sprintf("invalid base %q at position %d", e.Found, e.Position)
}

func (e *InvalidBaseError) IsSequenceError() {}

// ValidateDNA checks already normalized bases against the DNA alphabet.
func ValidateDNA(bases string) error {
	for i := 0; i < len(bases); i++ {
		switch bases[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return &InvalidBaseError{Position: i, Found: bases[i]}
		}
	}
	return nil
}
