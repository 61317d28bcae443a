package scoring

import (
	"fmt"
	"time"
)

// DataIntegrityError marks a single record whose fields cannot be evaluated.
// Callers skip the record and keep aggregating. The same type describes an
// optional detail or rating dropped from an otherwise valid record.
type DataIntegrityError struct {
	RequestID int64  `json:"request_id"`
	Field     string `json:"field"`
	Reason    string `json:"reason"`
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("request %d: %s: %s", e.RequestID, e.Field, e.Reason)
}

func integrity(id int64, field, reason string) *DataIntegrityError {
	return &DataIntegrityError{RequestID: id, Field: field, Reason: reason}
}

type InvalidWindowError struct {
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid window [%s, %s): %s", e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Reason)
}

type WindowTooLargeError struct {
	Count int
	Limit int
}

func (e *WindowTooLargeError) Error() string {
	return fmt.Sprintf("window holds more than %d records (got at least %d), narrow the window", e.Limit, e.Count)
}
