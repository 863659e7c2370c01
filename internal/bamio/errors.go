package bamio

import "fmt"

// TagError reports a record without usable basecaller tags.
type TagError struct {
	ReadID string
	Tag    string
	Reason string
}

func (e *TagError) Error() string {
	return fmt.Sprintf("read %s: tag %s: %s", e.ReadID, e.Tag, e.Reason)
}

func (e *TagError) IsReadError() {}

// MissingSignalError reports a BAM record whose read has no signal.
type MissingSignalError struct {
	ReadID string
}

func (e *MissingSignalError) Error() string {
	return fmt.Sprintf("read %s: no signal", e.ReadID)
}

func (e *MissingSignalError) IsReadError() {}
