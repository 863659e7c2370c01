// Package sequence provides validated nucleotide sequences and the base
// encodings shared by the aligner, the chunk extractor and the model.
//
// Basecalled reads and reference fragments are both represented as upper
// case DNA strings; RNA reads are converted (U -> T) on construction so the
// rest of the pipeline only ever sees the DNA alphabet.
package sequence

import (
	"fmt"
	"strings"
)

// Code is the categorical encoding of a single base.
type Code int8

const (
	CodeA Code = iota
	CodeC
	CodeG
	CodeT
	// CodeN marks an ambiguous base inside the read.
	CodeN
	// PadCode marks a context position outside the read.
	PadCode Code = -1
)

// NumBases is the number of unambiguous bases, i.e. the one-hot width.
const NumBases = 4

// Sequence represents a validated nucleotide sequence.
type Sequence struct {
	Bases string
	ID    string
}

// New creates a new DNA sequence with validation. Lower case input is
// accepted and U is read as T.
func New(bases string) (*Sequence, error) {
	normalized := Normalize(bases)

	if len(normalized) == 0 {
		return nil, &EmptySequenceError{}
	}

	if err := ValidateDNA(normalized); err != nil {
		return nil, err
	}

	return &Sequence{Bases: normalized}, nil
}

// WithID creates a new sequence with an identifier.
func WithID(bases, id string) (*Sequence, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("ID cannot be empty")
	}

	seq, err := New(bases)
	if err != nil {
		switch e := err.(type) {
		case *EmptySequenceError:
			e.ID = id
		case *InvalidBaseError:
			e.ID = id
		}
		return nil, err
	}

	seq.ID = id
	return seq, nil
}

// Normalize upper-cases bases and converts U to T.
func Normalize(bases string) string {
	return strings.ReplaceAll(strings.ToUpper(bases), "U", "T")
}

// Len returns the length of the sequence.
func (s *Sequence) Len() int {
	return len(s.Bases)
}

// Codes returns the categorical encoding of every base.
func (s *Sequence) Codes() []Code {
	return Encode(s.Bases)
}

// ReverseComplement returns the reverse complement of the sequence.
func (s *Sequence) ReverseComplement() *Sequence {
	return &Sequence{Bases: ReverseComplement(s.Bases), ID: s.ID}
}

// FindMotifPositions finds all positions where an IUPAC motif occurs.
func (s *Sequence) FindMotifPositions(motif string) ([]int, error) {
	m, err := CompileMotif(motif)
	if err != nil {
		return nil, err
	}
	return m.FindAll(s.Bases), nil
}

func (s *Sequence) String() string {
	if s.ID != "" {
		return fmt.Sprintf(">%s\n%s", s.ID, s.Bases)
	}
	return s.Bases
}

// EncodeBase returns the code of a single base byte.
func EncodeBase(b byte) Code {
	switch b {
	case 'A', 'a':
		return CodeA
	case 'C', 'c':
		return CodeC
	case 'G', 'g':
		return CodeG
	case 'T', 't', 'U', 'u':
		return CodeT
	default:
		return CodeN
	}
}

// Encode converts a base string into codes.
func Encode(bases string) []Code {
	out := make([]Code, len(bases))
	for i := 0; i < len(bases); i++ {
		out[i] = EncodeBase(bases[i])
	}
	return out
}

// Byte converts a code back to its base; pad positions become '.'.
func (c Code) Byte() byte {
	switch c {
	case CodeA:
		return 'A'
	case CodeC:
		return 'C'
	case CodeG:
		return 'G'
	case CodeT:
		return 'T'
	case PadCode:
		return '.'
	default:
		return 'N'
	}
}

// complementBase returns the complement of a DNA base.
func complementBase(c byte) byte {
	switch c {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	default:
		return 'N'
	}
}

// ReverseComplement returns the reverse complement of an upper case DNA string.
func ReverseComplement(bases string) string {
	n := len(bases)
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = complementBase(bases[i])
	}
	return string(out)
}
