package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/duplex"
	"github.com/aria-lang/remora-go/pkg/remora"
)

// Inference serves a loaded model. It is safe for concurrent use.
type Inference struct {
	engine  *remora.Engine
	aligner *remora.Aligner
}

// NewInference wraps an engine. aligner pairs duplex strands; nil uses the
// default aligner.
func NewInference(engine *remora.Engine, aligner *remora.Aligner) *Inference {
	return &Inference{engine: engine, aligner: aligner}
}

// ModelResponse describes the served checkpoint.
type ModelResponse struct {
	ID          string                   `json:"id"`
	RunID       string                   `json:"run_id,omitempty"`
	Arch        string                   `json:"arch"`
	Classes     []string                 `json:"classes"`
	Motifs      []string                 `json:"motifs,omitempty"`
	Epoch       int                      `json:"epoch"`
	Chunk       remora.ChunkConfig       `json:"chunk"`
	Fingerprint uint64                   `json:"fingerprint"`
	Metrics     *checkpoint.EpochMetrics `json:"metrics,omitempty"`
}

// ModelHandler returns the served checkpoint's metadata.
func (h *Inference) ModelHandler(w http.ResponseWriter, r *http.Request) {
	ck := h.engine.Checkpoint()
	writeJSON(w, r, http.StatusOK, ModelResponse{
		ID:          ck.ID,
		RunID:       ck.RunID,
		Arch:        ck.Arch(),
		Classes:     ck.Classes,
		Motifs:      ck.Motifs,
		Epoch:       ck.Epoch,
		Chunk:       ck.Chunk,
		Fingerprint: ck.Fingerprint(),
		Metrics:     ck.Metrics,
	})
}

// CallHandler calls one read posted as a ReadRecord. Per-read failures are
// reported in the response's error field with status 200, matching the
// streaming output.
func (h *Inference) CallHandler(w http.ResponseWriter, r *http.Request) {
	var rec remora.ReadRecord
	if !decode(w, r, &rec) {
		return
	}
	rd, err := rec.ToRead()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	calls, err := h.engine.CallRead(r.Context(), rd)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, calls)
}

// DuplexRequest holds the two strands of a duplex read.
type DuplexRequest struct {
	Template   *remora.ReadRecord `json:"template"`
	Complement *remora.ReadRecord `json:"complement"`
}

// DuplexHandler pairs and calls a duplex read.
func (h *Inference) DuplexHandler(w http.ResponseWriter, r *http.Request) {
	var req DuplexRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Template == nil || req.Complement == nil {
		writeError(w, http.StatusBadRequest, "template and complement are required")
		return
	}
	tmpl, err := req.Template.ToRead()
	if err != nil {
		writeError(w, http.StatusBadRequest, "template: "+err.Error())
		return
	}
	comp, err := req.Complement.ToRead()
	if err != nil {
		writeError(w, http.StatusBadRequest, "complement: "+err.Error())
		return
	}

	pair, err := duplex.NewPair(tmpl, comp, h.aligner)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	calls, err := h.engine.CallDuplex(r.Context(), pair)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, r, http.StatusOK, calls)
}

func writeCallError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
