package handlers

import (
	"net/http"

	"github.com/aria-lang/remora-go/pkg/remora"
)

// AlignmentRequest represents an alignment request. Zero scoring uses the
// default DNA matrix.
type AlignmentRequest struct {
	Read        string                `json:"read"`
	Reference   string                `json:"reference"`
	Mode        string                `json:"mode,omitempty"`
	TieBreak    string                `json:"tie_break,omitempty"`
	Band        int                   `json:"band,omitempty"`
	MinIdentity float64               `json:"min_identity,omitempty"`
	Scoring     *remora.ScoringMatrix `json:"scoring,omitempty"`
}

// AlignmentResponse represents the response for alignment.
type AlignmentResponse struct {
	AlignedRead string  `json:"aligned_read"`
	AlignedRef  string  `json:"aligned_ref"`
	Score       int     `json:"score"`
	Identity    float64 `json:"identity"`
	CIGAR       string  `json:"cigar"`
	RefStart    int     `json:"ref_start"`
	RefEnd      int     `json:"ref_end"`
	Matches     int     `json:"matches"`
	Mismatches  int     `json:"mismatches"`
	Insertions  int     `json:"insertions"`
	Deletions   int     `json:"deletions"`
	// ReadToRef maps each read base to its reference index, -1 when
	// inserted.
	ReadToRef []int `json:"read_to_ref"`
}

// AlignHandler aligns a read's basecalls to a reference. Alignments below
// min_identity are rejected with 422.
func AlignHandler(w http.ResponseWriter, r *http.Request) {
	var req AlignmentRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Read == "" || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "read and reference are required")
		return
	}

	cfg := remora.DefaultConfig().Align
	if req.Mode != "" {
		cfg.Mode = req.Mode
	}
	if req.TieBreak != "" {
		cfg.TieBreak = req.TieBreak
	}
	if req.Scoring != nil {
		cfg.Scoring = *req.Scoring
	}
	cfg.Band = req.Band
	cfg.MinIdentity = req.MinIdentity
	aligner, err := cfg.Aligner()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	aln, err := remora.AlignWith(aligner, req.Read, req.Reference)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	counts := aln.Counts()
	writeJSON(w, r, http.StatusOK, AlignmentResponse{
		AlignedRead: aln.AlignedRead,
		AlignedRef:  aln.AlignedRef,
		Score:       aln.Score,
		Identity:    aln.Identity,
		CIGAR:       aln.ToCIGAR(),
		RefStart:    aln.RefStart,
		RefEnd:      aln.RefEnd,
		Matches:     counts.Matches,
		Mismatches:  counts.Mismatches,
		Insertions:  counts.Insertions,
		Deletions:   counts.Deletions,
		ReadToRef:   aln.ReadToRef(),
	})
}
