// Package bamio turns basecaller BAM records into reads. Records carry the
// move table (mv), trimmed sample count (ts) and basecaller scaling (sm,
// sd); raw signal is attached separately from a signal source.
package bamio

import (
	"errors"
	"fmt"
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/reference"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/signalio"
)

var (
	tagMoves = sam.NewTag("mv")
	tagTrim  = sam.NewTag("ts")
	tagShift = sam.NewTag("sm")
	tagScale = sam.NewTag("sd")
)

// Reader yields primary records as reads.
type Reader struct {
	br     *bam.Reader
	genome *reference.Genome
	// IncludeSecondary keeps secondary and supplementary records.
	IncludeSecondary bool
}

// NewReader reads BAM from r. genome supplies reference bases for mapped
// records; with a nil genome every read is treated as unmapped.
func NewReader(r io.Reader, genome *reference.Genome, threads int) (*Reader, error) {
	br, err := bam.NewReader(r, threads)
	if err != nil {
		return nil, err
	}
	return &Reader{br: br, genome: genome}, nil
}

// Close releases the BAM reader.
func (r *Reader) Close() error {
	return r.br.Close()
}

// Next returns the next read, io.EOF at the end. A *TagError means the
// record was unusable and the caller may continue.
func (r *Reader) Next() (*read.Read, error) {
	for {
		rec, err := r.br.Read()
		if err != nil {
			return nil, err
		}
		if !r.IncludeSecondary && rec.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			continue
		}
		return r.convert(rec)
	}
}

func (r *Reader) convert(rec *sam.Record) (*read.Read, error) {
	rd := &read.Read{ID: rec.Name}
	reverse := rec.Flags&sam.Reverse != 0

	seq := string(rec.Seq.Expand())
	qual := rec.Qual
	if len(qual) > 0 && qual[0] == 0xff {
		qual = nil
	}
	if reverse {
		seq = sequence.ReverseComplement(seq)
		if qual != nil {
			qual = reversed(qual)
		}
	}
	rd.Sequence = seq
	if qual != nil {
		rd.Qualities = append([]byte(nil), qual...)
	}

	mv, err := moveTable(rec)
	if err != nil {
		return nil, err
	}
	rd.Stride = int(mv[0])
	rd.Moves = mv[1:]

	if aux := rec.AuxFields.Get(tagTrim); aux != nil {
		ts, ok := toInt(aux.Value())
		if !ok {
			return nil, &TagError{ReadID: rec.Name, Tag: "ts", Reason: fmt.Sprintf("unexpected type %T", aux.Value())}
		}
		rd.Trimmed = ts
	}
	shift, okShift := toFloat(rec.AuxFields.Get(tagShift))
	scale, okScale := toFloat(rec.AuxFields.Get(tagScale))
	if okShift && okScale {
		rd.BasecallShift, rd.BasecallScale, rd.HasBasecallScaling = shift, scale, true
	}

	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || r.genome == nil {
		return rd, nil
	}
	ref, err := r.reference(rec, reverse)
	if err != nil {
		return nil, err
	}
	rd.Ref = ref
	return rd, nil
}

func (r *Reader) reference(rec *sam.Record, reverse bool) (*read.Reference, error) {
	refLen, _ := rec.Cigar.Lengths()
	contig := rec.Ref.Name()
	bases, err := r.genome.Fetch(contig, rec.Pos, rec.Pos+refLen)
	if err != nil {
		return nil, &TagError{ReadID: rec.Name, Tag: "RNAME", Reason: err.Error()}
	}
	cigar := make([]alignment.CigarOp, 0, len(rec.Cigar))
	for _, op := range rec.Cigar {
		cigar = append(cigar, alignment.CigarOp{Type: op.Type().String()[0], Len: op.Len()})
	}
	strand := read.Forward
	if reverse {
		strand = read.Reverse
		bases = sequence.ReverseComplement(bases)
		for i, j := 0, len(cigar)-1; i < j; i, j = i+1, j-1 {
			cigar[i], cigar[j] = cigar[j], cigar[i]
		}
	}
	return &read.Reference{
		Contig:   contig,
		Strand:   strand,
		Start:    rec.Pos,
		Sequence: bases,
		Cigar:    cigar,
	}, nil
}

// moveTable returns the mv tag: the stride followed by one flag per
// stride block.
func moveTable(rec *sam.Record) ([]uint8, error) {
	aux := rec.AuxFields.Get(tagMoves)
	if aux == nil {
		return nil, &TagError{ReadID: rec.Name, Tag: "mv", Reason: "missing"}
	}
	var mv []uint8
	switch v := aux.Value().(type) {
	case []int8:
		mv = make([]uint8, len(v))
		for i, x := range v {
			mv[i] = uint8(x)
		}
	case []uint8:
		mv = append([]uint8(nil), v...)
	default:
		return nil, &TagError{ReadID: rec.Name, Tag: "mv", Reason: fmt.Sprintf("unexpected type %T", v)}
	}
	if len(mv) < 2 || mv[0] == 0 {
		return nil, &TagError{ReadID: rec.Name, Tag: "mv", Reason: "needs a positive stride and at least one move"}
	}
	return mv, nil
}

func toInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int8:
		return int(x), true
	case uint8:
		return int(x), true
	case int16:
		return int(x), true
	case uint16:
		return int(x), true
	case int32:
		return int(x), true
	case uint32:
		return int(x), true
	case int:
		return x, true
	}
	return 0, false
}

func toFloat(aux sam.Aux) (float64, bool) {
	if aux == nil {
		return 0, false
	}
	switch x := aux.Value().(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	if n, ok := toInt(aux.Value()); ok {
		return float64(n), true
	}
	return 0, false
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, x := range b {
		out[len(b)-1-i] = x
	}
	return out
}

// AttachSignal copies a signal record's samples and calibration into rd.
func AttachSignal(rd *read.Read, rec *signalio.Record) {
	rd.Signal = rec.Signal
	rd.Calibration = rec.Calibration()
}

// Join reads every record from r, attaches its signal and calls fn.
// Records without signal or with unusable tags are passed to skip with the
// reason and do not stop the scan.
func Join(r *Reader, signals map[string]*signalio.Record, fn func(*read.Read) error, skip func(readID string, err error)) error {
	for {
		rd, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var tagErr *TagError
			if errors.As(err, &tagErr) {
				if skip != nil {
					skip(tagErr.ReadID, err)
				}
				continue
			}
			return err
		}
		sig, ok := signals[rd.ID]
		if !ok {
			if skip != nil {
				skip(rd.ID, &MissingSignalError{ReadID: rd.ID})
			}
			continue
		}
		AttachSignal(rd, sig)
		if err := fn(rd); err != nil {
			return err
		}
	}
}
