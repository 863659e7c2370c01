package remora

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/signal"
)

// ReferenceRecord is the JSON form of a read's reference alignment.
type ReferenceRecord struct {
	Contig   string `json:"contig"`
	Strand   string `json:"strand"`
	Start    int    `json:"start"`
	Sequence string `json:"sequence"`
	Cigar    string `json:"cigar,omitempty"`
}

// ReadRecord is the JSON form of a read, used by the HTTP API and the
// --reads input of the command line tool. Quality is Phred+33.
type ReadRecord struct {
	ID        string           `json:"read_id"`
	Signal    []float32        `json:"signal"`
	Offset    float64          `json:"offset"`
	Scale     float64          `json:"scale"`
	Sequence  string           `json:"sequence"`
	Moves     []int            `json:"moves"`
	Stride    int              `json:"stride"`
	Trimmed   int              `json:"trimmed,omitempty"`
	Shift     *float64         `json:"sm,omitempty"`
	ScaleSD   *float64         `json:"sd,omitempty"`
	Quality   string           `json:"quality,omitempty"`
	Reference *ReferenceRecord `json:"reference,omitempty"`
}

// ToRead validates the record and converts it.
func (rec *ReadRecord) ToRead() (*Read, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("read record has no read_id")
	}
	mv := make([]uint8, len(rec.Moves))
	for i, m := range rec.Moves {
		if m != 0 && m != 1 {
			return nil, fmt.Errorf("read %s: move flag %d at %d is not 0 or 1", rec.ID, m, i)
		}
		mv[i] = uint8(m)
	}
	cal := signal.Calibration{Offset: rec.Offset, Scale: rec.Scale}
	if cal.IsZero() {
		cal = signal.Identity
	}
	r := &read.Read{
		ID:          rec.ID,
		Signal:      rec.Signal,
		Calibration: cal,
		Sequence:    rec.Sequence,
		Moves:       mv,
		Stride:      rec.Stride,
		Trimmed:     rec.Trimmed,
	}
	if r.Stride == 0 {
		r.Stride = 1
	}
	if rec.Shift != nil && rec.ScaleSD != nil {
		r.BasecallShift, r.BasecallScale, r.HasBasecallScaling = *rec.Shift, *rec.ScaleSD, true
	}
	if rec.Quality != "" {
		if len(rec.Quality) != len(rec.Sequence) {
			return nil, fmt.Errorf("read %s: %d quality values for %d bases", rec.ID, len(rec.Quality), len(rec.Sequence))
		}
		r.Qualities = make([]byte, len(rec.Quality))
		for i := 0; i < len(rec.Quality); i++ {
			if rec.Quality[i] < 33 {
				return nil, fmt.Errorf("read %s: invalid Phred+33 quality %q", rec.ID, rec.Quality[i])
			}
			r.Qualities[i] = rec.Quality[i] - 33
		}
	}
	if ref := rec.Reference; ref != nil {
		var strand read.Strand
		switch ref.Strand {
		case "+", "":
			strand = read.Forward
		case "-":
			strand = read.Reverse
		default:
			return nil, fmt.Errorf("read %s: unknown strand %q", rec.ID, ref.Strand)
		}
		r.Ref = &read.Reference{Contig: ref.Contig, Strand: strand, Start: ref.Start, Sequence: ref.Sequence}
		if ref.Cigar != "" {
			ops, err := alignment.ParseCigar(ref.Cigar)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", rec.ID, err)
			}
			r.Ref.Cigar = ops
		}
	}
	return r, nil
}

// NewReadRecord converts a read back to its JSON form.
func NewReadRecord(r *Read) *ReadRecord {
	rec := &ReadRecord{
		ID:       r.ID,
		Signal:   r.Signal,
		Offset:   r.Calibration.Offset,
		Scale:    r.Calibration.Scale,
		Sequence: r.Sequence,
		Moves:    make([]int, len(r.Moves)),
		Stride:   r.Stride,
		Trimmed:  r.Trimmed,
	}
	for i, m := range r.Moves {
		rec.Moves[i] = int(m)
	}
	if r.HasBasecallScaling {
		sm, sd := r.BasecallShift, r.BasecallScale
		rec.Shift, rec.ScaleSD = &sm, &sd
	}
	if r.Qualities != nil {
		q := make([]byte, len(r.Qualities))
		for i, v := range r.Qualities {
			q[i] = v + 33
		}
		rec.Quality = string(q)
	}
	if r.Ref != nil {
		rec.Reference = &ReferenceRecord{
			Contig:   r.Ref.Contig,
			Strand:   string(r.Ref.Strand),
			Start:    r.Ref.Start,
			Sequence: r.Ref.Sequence,
		}
		for _, op := range r.Ref.Cigar {
			rec.Reference.Cigar += fmt.Sprintf("%d%c", op.Len, op.Type)
		}
	}
	return rec
}

// ReadRecords parses JSON lines of ReadRecord.
func ReadRecords(r io.Reader) ([]*Read, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<28)
	var reads []*Read
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec ReadRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rd, err := rec.ToRead()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		reads = append(reads, rd)
	}
	return reads, sc.Err()
}

// WriteRecords writes reads as JSON lines.
func WriteRecords(w io.Writer, reads []*Read) error {
	enc := json.NewEncoder(w)
	for _, r := range reads {
		if err := enc.Encode(NewReadRecord(r)); err != nil {
			return err
		}
	}
	return nil
}
