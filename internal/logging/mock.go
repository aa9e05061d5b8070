package logging

// MockLogger captures log entries for verification in tests.
type MockLogger struct {
	Entries       []LogEntry
	pendingError  error
	pendingFields []Field
}

// LogEntry is a single captured log record.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

func (m *MockLogger) record(level, msg string, fields []Field) {
	allFields := append(m.pendingFields, fields...)
	m.Entries = append(m.Entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  allFields,
		Error:   m.pendingError,
	})
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.record("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.record("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.record("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.record("ERROR", msg, fields) }

// WithError returns a logger that attaches err to subsequent entries.
// Entries still land on the receiver so tests see them.
func (m *MockLogger) WithError(err error) Logger {
	child := *m
	child.pendingError = err
	return &childProxy{parent: m, child: child}
}

func (m *MockLogger) WithField(key string, value interface{}) Logger {
	return m.WithFields(Field{Key: key, Value: value})
}

func (m *MockLogger) WithFields(fields ...Field) Logger {
	child := *m
	child.pendingFields = append(append([]Field{}, m.pendingFields...), fields...)
	return &childProxy{parent: m, child: child}
}

// HasEntry checks whether an entry with the given level and message exists.
func (m *MockLogger) HasEntry(level, message string) bool {
	for _, entry := range m.Entries {
		if entry.Level == level && entry.Message == message {
			return true
		}
	}
	return false
}

// EntriesByLevel returns the captured entries with the given level.
func (m *MockLogger) EntriesByLevel(level string) []LogEntry {
	var entries []LogEntry
	for _, entry := range m.Entries {
		if entry.Level == level {
			entries = append(entries, entry)
		}
	}
	return entries
}

// childProxy forwards records to the root MockLogger while carrying the
// derived error/field context.
type childProxy struct {
	parent *MockLogger
	child  MockLogger
}

func (p *childProxy) record(level, msg string, fields []Field) {
	allFields := append(append([]Field{}, p.child.pendingFields...), fields...)
	p.parent.Entries = append(p.parent.Entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  allFields,
		Error:   p.child.pendingError,
	})
}

func (p *childProxy) Debug(msg string, fields ...Field) { p.record("DEBUG", msg, fields) }
func (p *childProxy) Info(msg string, fields ...Field)  { p.record("INFO", msg, fields) }
func (p *childProxy) Warn(msg string, fields ...Field)  { p.record("WARN", msg, fields) }
func (p *childProxy) Error(msg string, fields ...Field) { p.record("ERROR", msg, fields) }

func (p *childProxy) WithError(err error) Logger {
	child := p.child
	child.pendingError = err
	return &childProxy{parent: p.parent, child: child}
}

func (p *childProxy) WithField(key string, value interface{}) Logger {
	return p.WithFields(Field{Key: key, Value: value})
}

func (p *childProxy) WithFields(fields ...Field) Logger {
	child := p.child
	child.pendingFields = append(append([]Field{}, p.child.pendingFields...), fields...)
	return &childProxy{parent: p.parent, child: child}
}
