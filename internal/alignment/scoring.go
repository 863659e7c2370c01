// Package alignment computes base-level read/reference alignments with an
// affine-gap (Gotoh) dynamic program and turns them into position maps
// linking read bases to reference coordinates and signal ranges.
package alignment

import "fmt"

// Mode represents the type of alignment.
type Mode int

const (
	// Global aligns both sequences end to end.
	Global Mode = iota
	// SemiGlobal aligns the whole read but lets reference overhangs at
	// either end go unpenalized, as when aligning a read to a reference
	// window larger than the read.
	SemiGlobal
)

func (m Mode) String() string {
	switch m {
	case Global:
		return "global"
	case SemiGlobal:
		return "semi-global"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "global", "":
		return Global, nil
	case "semi-global", "semiglobal", "semi_global":
		return SemiGlobal, nil
	default:
		return Global, fmt.Errorf("unknown alignment mode %q", s)
	}
}

// ScoringMatrix represents the scoring parameters for alignment. A gap of
// length L scores GapOpenPenalty + L*GapExtendPenalty.
type ScoringMatrix struct {
	MatchScore       int `yaml:"match" json:"match"`
	MismatchPenalty  int `yaml:"mismatch" json:"mismatch"`
	GapOpenPenalty   int `yaml:"gap_open" json:"gap_open"`
	GapExtendPenalty int `yaml:"gap_extend" json:"gap_extend"`
}

// NewScoringMatrix creates a new scoring matrix with validation.
func NewScoringMatrix(match, mismatch, gapOpen, gapExtend int) (*ScoringMatrix, error) {
	s := &ScoringMatrix{
		MatchScore:       match,
		MismatchPenalty:  mismatch,
		GapOpenPenalty:   gapOpen,
		GapExtendPenalty: gapExtend,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the sign conventions.
func (s *ScoringMatrix) Validate() error {
	if s.MatchScore <= 0 {
		return fmt.Errorf("match score must be positive")
	}
	if s.MismatchPenalty > 0 {
		return fmt.Errorf("mismatch penalty should be <= 0")
	}
	if s.GapOpenPenalty > 0 {
		return fmt.Errorf("gap open penalty should be <= 0")
	}
	if s.GapExtendPenalty > 0 {
		return fmt.Errorf("gap extend penalty should be <= 0")
	}
	return nil
}

// DefaultDNA creates a default DNA scoring matrix, tuned for nanopore
// basecalls where short indels dominate the error profile.
func DefaultDNA() *ScoringMatrix {
	return &ScoringMatrix{
		MatchScore:       2,
		MismatchPenalty:  -4,
		GapOpenPenalty:   -4,
		GapExtendPenalty: -2,
	}
}

// Simple creates a simple scoring matrix with linear gap penalty.
func Simple(match, mismatch, gap int) (*ScoringMatrix, error) {
	return NewScoringMatrix(match, mismatch, 0, gap)
}

// Score returns the score for comparing two bases. N never matches.
func (s *ScoringMatrix) Score(a, b byte) int {
	if a == b && a != 'N' {
		return s.MatchScore
	}
	return s.MismatchPenalty
}

// String returns a string representation of the scoring matrix.
func (s *ScoringMatrix) String() string {
	return fmt.Sprintf("ScoringMatrix { match: %d, mismatch: %d, gap_open: %d, gap_extend: %d }",
		s.MatchScore, s.MismatchPenalty, s.GapOpenPenalty, s.GapExtendPenalty)
}

// TieBreak orders the DP states consulted when scores are equal.
type TieBreak int

const (
	// MatchDeletionInsertion prefers a match/mismatch, then a deletion,
	// then an insertion.
	MatchDeletionInsertion TieBreak = iota
	// MatchInsertionDeletion prefers a match/mismatch, then an insertion,
	// then a deletion.
	MatchInsertionDeletion
)

// ParseTieBreak parses a tie-break policy name.
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "match-deletion-insertion":
		return MatchDeletionInsertion, nil
	case "match-insertion-deletion":
		return MatchInsertionDeletion, nil
	default:
		return MatchDeletionInsertion, fmt.Errorf("unknown tie-break policy %q", s)
	}
}

func (t TieBreak) String() string {
	if t == MatchInsertionDeletion {
		return "match-insertion-deletion"
	}
	return "match-deletion-insertion"
}

// order returns the DP states in preference order.
func (t TieBreak) order() [3]state {
	if t == MatchInsertionDeletion {
		return [3]state{stMatch, stIns, stDel}
	}
	return [3]state{stMatch, stDel, stIns}
}
