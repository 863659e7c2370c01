package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cespare/xxhash"
	"github.com/klauspost/compress/zstd"
)

const (
	// Magic opens every checkpoint blob.
	Magic = "RMCK"
	// FormatVersion is the current blob layout.
	FormatVersion uint16 = 1

	headerLen = len(Magic) + 2 + 8
)

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// Encode serializes c as magic, version, xxhash64 of the body, then the
// zstd-compressed JSON body.
func Encode(c *Checkpoint) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint %s: %w", c.ID, err)
	}
	packed := encoder.EncodeAll(body, nil)

	out := make([]byte, headerLen, headerLen+len(packed))
	copy(out, Magic)
	binary.BigEndian.PutUint16(out[len(Magic):], FormatVersion)
	binary.BigEndian.PutUint64(out[len(Magic)+2:], xxhash.Sum64(packed))
	return append(out, packed...), nil
}

// Decode parses a blob written by Encode.
func Decode(b []byte) (*Checkpoint, error) {
	if len(b) < headerLen {
		return nil, &CorruptCheckpointError{Reason: "truncated header"}
	}
	if string(b[:len(Magic)]) != Magic {
		return nil, &CorruptCheckpointError{Reason: "bad magic"}
	}
	if v := binary.BigEndian.Uint16(b[len(Magic):]); v != FormatVersion {
		return nil, &CorruptCheckpointError{Reason: fmt.Sprintf("unsupported format version %d", v)}
	}
	packed := b[headerLen:]
	if xxhash.Sum64(packed) != binary.BigEndian.Uint64(b[len(Magic)+2:]) {
		return nil, &CorruptCheckpointError{Reason: "checksum mismatch"}
	}
	body, err := decoder.DecodeAll(packed, nil)
	if err != nil {
		return nil, &CorruptCheckpointError{Reason: "decompress", Err: err}
	}
	var c Checkpoint
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, &CorruptCheckpointError{Reason: "decode body", Err: err}
	}
	return &c, nil
}

// Write encodes c to w.
func Write(w io.Writer, c *Checkpoint) error {
	b, err := Encode(c)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Read decodes a checkpoint from r.
func Read(r io.Reader) (*Checkpoint, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return Decode(buf.Bytes())
}
