package handlers

import (
	"net/http"

	"github.com/aria-lang/remora-go/internal/quality"
)

// FilterReadRequest represents a read filter request. Quality is Phred+33
// and may be empty. A nil filter uses the default.
type FilterReadRequest struct {
	Sequence string          `json:"sequence"`
	Quality  string          `json:"quality,omitempty"`
	Filter   *quality.Filter `json:"filter,omitempty"`
}

// FilterReadResponse represents the response for read filtering.
type FilterReadResponse struct {
	Passed      bool    `json:"passed"`
	Reason      string  `json:"reason,omitempty"`
	MeanQuality float64 `json:"mean_quality"`
	Category    string  `json:"category,omitempty"`
}

// FilterReadHandler checks whether a read would pass the dataset quality
// filter.
func FilterReadHandler(w http.ResponseWriter, r *http.Request) {
	var req FilterReadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Sequence == "" {
		writeError(w, http.StatusBadRequest, "sequence is required")
		return
	}

	var quals []byte
	if req.Quality != "" {
		quals = make([]byte, len(req.Quality))
		for i := 0; i < len(req.Quality); i++ {
			if req.Quality[i] < 33 {
				writeError(w, http.StatusBadRequest, "quality must be Phred+33 encoded")
				return
			}
			quals[i] = req.Quality[i] - 33
		}
	}

	f := req.Filter
	if f == nil {
		f = quality.DefaultFilter()
	}
	res, err := f.Check(req.Sequence, quals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := FilterReadResponse{
		Passed:      res.Passed,
		Reason:      res.Reason,
		MeanQuality: res.MeanQuality,
	}
	if quals != nil {
		resp.Category = quality.Categorize(res.MeanQuality).String()
	}
	writeJSON(w, r, http.StatusOK, resp)
}
