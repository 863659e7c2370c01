package handlers

import (
	"net/http"

	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/pkg/remora"
)

// SequenceRequest represents a request with a sequence.
type SequenceRequest struct {
	Sequence string `json:"sequence"`
}

// ReverseComplementResponse represents the response for reverse complement.
type ReverseComplementResponse struct {
	ReverseComplement string `json:"reverse_complement"`
}

// ReverseComplementHandler handles reverse complement requests.
func ReverseComplementHandler(w http.ResponseWriter, r *http.Request) {
	var req SequenceRequest
	if !decode(w, r, &req) {
		return
	}

	seq, err := sequence.New(req.Sequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, r, http.StatusOK, ReverseComplementResponse{
		ReverseComplement: seq.ReverseComplement().Bases,
	})
}

// FocusRequest asks for the positions a set of motifs selects.
type FocusRequest struct {
	Sequence string   `json:"sequence"`
	Motifs   []string `json:"motifs"`
}

// FocusResponse lists the selected read positions with their base.
type FocusResponse struct {
	Positions []int  `json:"positions"`
	Bases     string `json:"bases"`
}

// FocusPositionsHandler returns the positions that would be called for a
// sequence. No motifs selects every base.
func FocusPositionsHandler(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if !decode(w, r, &req) {
		return
	}

	seq, err := sequence.New(req.Sequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	motifs, err := remora.ParseMotifs(req.Motifs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	positions := remora.FocusPositions(seq.Bases, motifs)
	bases := make([]byte, len(positions))
	for i, p := range positions {
		bases[i] = seq.Bases[p]
	}
	writeJSON(w, r, http.StatusOK, FocusResponse{Positions: positions, Bases: string(bases)})
}
