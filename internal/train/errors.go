package train

import (
	"fmt"
	"strings"
)

// maxReportedReads caps the read IDs listed in a divergence message.
const maxReportedReads = 5

// TrainingDivergedError reports a non-finite loss or an exploding
// parameter norm.
type TrainingDivergedError struct {
	Epoch   int
	Batch   int
	Reason  string
	ReadIDs []string
}

func (e *TrainingDivergedError) Error() string {
	ids := e.ReadIDs
	more := ""
	if len(ids) > maxReportedReads {
		more = fmt.Sprintf(" and %d more", len(ids)-maxReportedReads)
		ids = ids[:maxReportedReads]
	}
	return fmt.Sprintf("training diverged at epoch %d batch %d: %s (reads %s%s)",
		e.Epoch, e.Batch, e.Reason, strings.Join(ids, ", "), more)
}

// BatchError reports a batch that cannot be fed to the model.
type BatchError struct {
	Epoch  int
	Batch  int
	ReadID string
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("malformed batch at epoch %d batch %d (read %s): %v", e.Epoch, e.Batch, e.ReadID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
