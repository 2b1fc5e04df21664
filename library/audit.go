package library

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one line of the audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Entity    string    `json:"entity"`
	Action    string    `json:"action"`
	Data      any       `json:"data,omitempty"`
}

// Audited entity names.
const (
	BookEntity = "book"
	UserEntity = "user"
	LoanEntity = "loan"
	FineEntity = "fine"
)

// AuditLogger appends JSON-lines entries to a file. A nil logger
// discards everything, so callers never need to guard.
type AuditLogger struct {
	path string
}

func NewAuditLogger(path string) *AuditLogger {
	return &AuditLogger{path: path}
}

// Log appends one entry. Audit failures are reported to the caller but
// are never fatal to the operation being audited.
func (l *AuditLogger) Log(entity, action string, data any) error {
	if l == nil {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	entry := AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Entity:    entity,
		Action:    action,
		Data:      data,
	}
	return json.NewEncoder(f).Encode(entry)
}
