package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/signal"
)

const fileVersion = 2

type fileHeader struct {
	Version            int           `json:"version"`
	Config             chunk.Config  `json:"config"`
	Normalize          signal.Policy `json:"normalize"`
	UseBasecallScaling bool          `json:"use_basecall_scaling"`
	Classes            []string      `json:"classes"`
	Count              int           `json:"count"`
}

// Write stores the dataset as zstd-compressed JSON lines: a header followed
// by one chunk per line.
func (d *Dataset) Write(w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(zw)
	hdr := fileHeader{
		Version:            fileVersion,
		Config:             d.Config,
		Normalize:          d.Normalize,
		UseBasecallScaling: d.UseBasecallScaling,
		Classes:            d.Classes,
		Count:              len(d.Chunks),
	}
	if err := enc.Encode(hdr); err != nil {
		zw.Close()
		return err
	}
	for i := range d.Chunks {
		if err := enc.Encode(&d.Chunks[i]); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

// Read loads a dataset written by Write.
func Read(r io.Reader) (*Dataset, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	dec := json.NewDecoder(bufio.NewReader(zr))
	var hdr fileHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("reading dataset header: %w", err)
	}
	if hdr.Version != fileVersion {
		return nil, fmt.Errorf("unsupported dataset version %d", hdr.Version)
	}
	if err := hdr.Normalize.Validate(); err != nil {
		return nil, fmt.Errorf("dataset normalization: %w", err)
	}
	ds, err := New(hdr.Config, hdr.Classes)
	if err != nil {
		return nil, err
	}
	ds.Normalize, ds.UseBasecallScaling = hdr.Normalize, hdr.UseBasecallScaling
	ds.Chunks = make([]chunk.Chunk, 0, hdr.Count)
	for i := 0; i < hdr.Count; i++ {
		var c chunk.Chunk
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("reading chunk %d: %w", i, err)
		}
		if err := ds.Add(c); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
