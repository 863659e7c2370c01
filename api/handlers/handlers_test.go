package handlers

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/infer"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/signal"
	"github.com/aria-lang/remora-go/pkg/remora"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := chunk.Symmetric(4, 1)
	m, err := model.New(model.Spec{Arch: "conv", Filters: 4, Kernel: 3, Hidden: 4, Seed: 2}.ForChunks(cfg, 2))
	require.NoError(t, err)
	ck := checkpoint.New(m, cfg, signal.DefaultPolicy(), []string{"C", "5mC"}, []string{"CG:0"})
	engine, err := remora.NewEngine(ck, remora.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return NewRouter(zerolog.Nop(), NewInference(engine, nil), time.Minute)
}

func synthRecord(id, seq string, rng *rand.Rand) *remora.ReadRecord {
	rec := &remora.ReadRecord{ID: id, Sequence: seq, Stride: 1}
	for range seq {
		for k := 0; k < 4; k++ {
			rec.Signal = append(rec.Signal, float32(rng.NormFloat64()*10+90))
			if k == 0 {
				rec.Moves = append(rec.Moves, 1)
			} else {
				rec.Moves = append(rec.Moves, 0)
			}
		}
	}
	return rec
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, testRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAlignHandler(t *testing.T) {
	h := testRouter(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"ok", AlignmentRequest{Read: "ACGTACGT", Reference: "ACGTTACGT"}, http.StatusOK},
		{"semi-global", AlignmentRequest{Read: "ACGT", Reference: "TTTACGTTT", Mode: "semi-global"}, http.StatusOK},
		{"missing reference", AlignmentRequest{Read: "ACGT"}, http.StatusBadRequest},
		{"bad mode", AlignmentRequest{Read: "ACGT", Reference: "ACGT", Mode: "local"}, http.StatusBadRequest},
		{"below identity", AlignmentRequest{Read: "AAAAAAAA", Reference: "CCCCCCCC", MinIdentity: 0.9}, http.StatusUnprocessableEntity},
		{"bad body", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/align", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	rec := do(t, h, http.MethodPost, "/api/align", AlignmentRequest{Read: "ACGTACGT", Reference: "ACGTTACGT"})
	var resp AlignmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 8, resp.Matches)
	assert.Equal(t, 1, resp.Deletions)
	assert.Len(t, resp.ReadToRef, 8)
	assert.Equal(t, len(resp.AlignedRead), len(resp.AlignedRef))
}

func TestSequenceHandlers(t *testing.T) {
	h := testRouter(t)

	rec := do(t, h, http.MethodPost, "/api/sequence/reverse-complement", SequenceRequest{Sequence: "aacg"})
	require.Equal(t, http.StatusOK, rec.Code)
	var rc ReverseComplementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rc))
	assert.Equal(t, "CGTT", rc.ReverseComplement)

	rec = do(t, h, http.MethodPost, "/api/sequence/focus", FocusRequest{Sequence: "ACGTACGT", Motifs: []string{"CG:1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var focus FocusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &focus))
	assert.Equal(t, []int{2, 6}, focus.Positions)
	assert.Equal(t, "GG", focus.Bases)

	rec = do(t, h, http.MethodPost, "/api/sequence/focus", FocusRequest{Sequence: "ACGT", Motifs: []string{"CG:7"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/sequence/reverse-complement", SequenceRequest{Sequence: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKMerCountHandler(t *testing.T) {
	h := testRouter(t)

	rec := do(t, h, http.MethodPost, "/api/kmer/count", KMerRequest{Sequence: "ACGACGA", K: 3, Top: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp KMerCountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.TotalCount)
	assert.Equal(t, 3, resp.UniqueCount)
	require.Len(t, resp.KMers, 1)
	assert.Equal(t, KMerItem{KMer: "ACG", Count: 2}, resp.KMers[0])

	rec = do(t, h, http.MethodPost, "/api/kmer/count", KMerRequest{Sequence: "ACGT", K: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterReadHandler(t *testing.T) {
	h := testRouter(t)
	long := "ACGTACGTAC" + "ACGTACGTAC" + "ACGTACGTAC" + "ACGTACGTAC" + "ACGTACGTAC"

	tests := []struct {
		name   string
		req    FilterReadRequest
		passed bool
		reason string
	}{
		{"default pass", FilterReadRequest{Sequence: long}, true, ""},
		{"default short", FilterReadRequest{Sequence: "ACGT"}, false, "read too short"},
		{"custom filter", FilterReadRequest{Sequence: "ACGT", Quality: "5555", Filter: &remora.Filter{MinMeanQuality: 30, MaxAmbiguous: -1}}, false, "low mean quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/quality/filter", tt.req)
			require.Equal(t, http.StatusOK, rec.Code)
			var resp FilterReadResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.passed, resp.Passed)
			assert.Equal(t, tt.reason, resp.Reason)
		})
	}

	rec := do(t, h, http.MethodPost, "/api/quality/filter", FilterReadRequest{Sequence: "ACGT", Quality: "55"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelHandler(t *testing.T) {
	rec := do(t, testRouter(t), http.MethodGet, "/api/model", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conv", resp.Arch)
	assert.Equal(t, []string{"C", "5mC"}, resp.Classes)
	assert.Equal(t, chunk.Symmetric(4, 1), resp.Chunk)
	assert.NotZero(t, resp.Fingerprint)
}

func TestCallHandler(t *testing.T) {
	h := testRouter(t)
	rng := rand.New(rand.NewSource(1))

	rec := do(t, h, http.MethodPost, "/api/call", synthRecord("r1", "ACGTACGTAA", rng))
	require.Equal(t, http.StatusOK, rec.Code)
	var calls infer.ReadCalls
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	assert.Equal(t, "r1", calls.ReadID)
	assert.Equal(t, []int{1, 5}, calls.Positions)
	require.Len(t, calls.Probs, 2)
	assert.InDelta(t, 1.0, calls.Probs[0][0]+calls.Probs[0][1], 1e-5)
	assert.Empty(t, calls.Error)

	// A read failure is reported in the body, not as an HTTP error.
	bad := synthRecord("r2", "ACGTACGTAA", rng)
	bad.Moves[1] = 1
	rec = do(t, h, http.MethodPost, "/api/call", bad)
	require.Equal(t, http.StatusOK, rec.Code)
	calls = infer.ReadCalls{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	assert.NotEmpty(t, calls.Error)
	assert.Empty(t, calls.Positions)

	rec = do(t, h, http.MethodPost, "/api/call", remora.ReadRecord{Sequence: "ACGT"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplexHandler(t *testing.T) {
	h := testRouter(t)
	rng := rand.New(rand.NewSource(4))
	const tmpl = "ACGTACGTAA"

	rec := do(t, h, http.MethodPost, "/api/call/duplex", DuplexRequest{
		Template:   synthRecord("t", tmpl, rng),
		Complement: synthRecord("c", sequence.ReverseComplement(tmpl), rng),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var calls infer.DuplexCalls
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &calls))
	assert.Equal(t, "t", calls.TemplateID)
	assert.Equal(t, "c", calls.ComplementID)
	assert.NotEmpty(t, calls.Calls)
	assert.Empty(t, calls.Error)

	rec = do(t, h, http.MethodPost, "/api/call/duplex", DuplexRequest{Template: synthRecord("t", tmpl, rng)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelRoutesNeedEngine(t *testing.T) {
	h := NewRouter(zerolog.Nop(), nil, 0)
	rec := do(t, h, http.MethodGet, "/api/model", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
