package snapshot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cyclelog/internal/event"
)

// IncompletePartitionError is returned by CreateSnapshot when a partition
// lacks its start or complete marker. Nothing is persisted; retry once the
// partition completes.
type IncompletePartitionError struct {
	PartitionID int64
	Missing     []event.Type
}

// Error implements the error interface.
func (e *IncompletePartitionError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, t := range e.Missing {
		missing[i] = string(t)
	}
	return fmt.Sprintf("partition %d is incomplete: missing %s", e.PartitionID, strings.Join(missing, ", "))
}

// IsIncomplete reports whether err is or wraps an *IncompletePartitionError.
func IsIncomplete(err error) bool {
	var ie *IncompletePartitionError
	return errors.As(err, &ie)
}
