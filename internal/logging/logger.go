// Package logging provides the structured logging abstraction used across
// the application. It decouples domain packages from the concrete logging
// framework so tests can capture output with a mock.
package logging

// Logger is the structured logger passed into services and strategies.
type Logger interface {
	// Debug logs a debug-level message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info-level message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning-level message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error-level message with optional fields
	Error(msg string, fields ...Field)

	// WithError returns a new logger with an error field attached
	WithError(err error) Logger

	// WithField returns a new logger with a single field attached
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with multiple fields attached
	WithFields(fields ...Field) Logger
}

// Field is a key-value pair attached to a log message.
type Field struct {
	Key   string
	Value interface{}
}

// Standardized field names. Keeping these consistent makes the log stream
// filterable by item, match, and operation.
const (
	FieldItemID        = "item_id"
	FieldItemName      = "item_name"
	FieldTransactionID = "transaction_id"
	FieldMatchID       = "match_id"
	FieldOccurrence    = "occurrence_date"
	FieldScore         = "score"
	FieldTier          = "tier"
	FieldStatus        = "status"
	FieldOperation     = "operation"
	FieldCount         = "count"
	FieldFile          = "file_path"
	FieldWindowStart   = "window_start"
	FieldWindowEnd     = "window_end"
	FieldStrategy      = "strategy"
	FieldCategory      = "category"
)
