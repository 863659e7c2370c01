package handlers

import (
	"net/http"

	"github.com/aria-lang/remora-go/internal/kmer"
	"github.com/aria-lang/remora-go/internal/sequence"
)

// KMerRequest represents a k-mer count request. Top limits the returned
// k-mers to the most frequent; 0 returns all.
type KMerRequest struct {
	Sequence string `json:"sequence"`
	K        int    `json:"k"`
	Top      int    `json:"top,omitempty"`
}

// KMerItem represents a k-mer and its count.
type KMerItem struct {
	KMer  string `json:"kmer"`
	Count int    `json:"count"`
}

// KMerCountResponse represents the response for k-mer counting.
type KMerCountResponse struct {
	K           int        `json:"k"`
	UniqueCount int        `json:"unique_count"`
	TotalCount  int        `json:"total_count"`
	KMers       []KMerItem `json:"kmers"`
}

// KMerCountHandler handles k-mer counting requests. K-mers spanning
// ambiguous bases are not counted.
func KMerCountHandler(w http.ResponseWriter, r *http.Request) {
	var req KMerRequest
	if !decode(w, r, &req) {
		return
	}

	counter, err := kmer.NewCounter(req.K)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seq, err := sequence.New(req.Sequence)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	counter.CountKMers(seq.Bases)

	n := req.Top
	if n <= 0 {
		n = counter.UniqueCount()
	}
	resp := KMerCountResponse{
		K:           req.K,
		UniqueCount: counter.UniqueCount(),
		TotalCount:  counter.Total,
		KMers:       []KMerItem{},
	}
	if n > 0 {
		top, err := counter.MostFrequent(n)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		for _, c := range top {
			resp.KMers = append(resp.KMers, KMerItem{KMer: c.KMer, Count: c.Count})
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}
