// Package signalio reads raw per-read signal from JSON lines files.
package signalio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/aria-lang/remora-go/internal/signal"
)

// Record is one read's raw signal and calibration.
type Record struct {
	ReadID       string    `json:"read_id"`
	Signal       []float32 `json:"signal"`
	Offset       float64   `json:"offset"`
	Scale        float64   `json:"scale"`
	SamplingRate float64   `json:"sampling_rate,omitempty"`
	Channel      int       `json:"channel,omitempty"`
}

// Calibration returns the DAC to picoamp conversion.
func (r *Record) Calibration() signal.Calibration {
	return signal.Calibration{Offset: r.Offset, Scale: r.Scale}
}

// Source yields signal records. Next returns io.EOF when exhausted.
type Source interface {
	Next() (*Record, error)
	Close() error
}

// JSONLSource decodes one Record per line.
type JSONLSource struct {
	scanner *bufio.Scanner
	closers []func() error
	line    int
}

// maxLine bounds one encoded read.
const maxLine = 1 << 28

// NewJSONLSource reads records from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)
	return &JSONLSource{scanner: sc}
}

// Open opens a JSON lines file, decompressing ".zst" files.
func Open(path string) (*JSONLSource, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		src := NewJSONLSource(fp)
		src.closers = append(src.closers, fp.Close)
		return src, nil
	}
	zr, err := zstd.NewReader(fp, zstd.WithDecoderConcurrency(1))
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src := NewJSONLSource(zr)
	src.closers = append(src.closers, func() error { zr.Close(); return nil }, fp.Close)
	return src, nil
}

func (s *JSONLSource) Next() (*Record, error) {
	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("signal line %d: %w", s.line, err)
		}
		if rec.ReadID == "" {
			return nil, fmt.Errorf("signal line %d: missing read_id", s.line)
		}
		return &rec, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *JSONLSource) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Index loads every record of src keyed by read ID. Duplicate IDs are an
// error.
func Index(src Source) (map[string]*Record, error) {
	idx := make(map[string]*Record)
	for {
		rec, err := src.Next()
		if err == io.EOF {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}
		if _, dup := idx[rec.ReadID]; dup {
			return nil, fmt.Errorf("duplicate read %s in signal file", rec.ReadID)
		}
		idx[rec.ReadID] = rec
	}
}

// Writer encodes records as JSON lines.
type Writer struct {
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

func (w *Writer) Write(rec *Record) error {
	return w.enc.Encode(rec)
}
