package messagequeue

import (
	"encoding/json"
	"fmt"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects only need valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	var target any
	switch subject {
	case SubjectAuditRecorded:
		target = &AuditRecordedPayload{}
	case SubjectTaskStatus:
		target = &TaskStatusPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}

	switch p := target.(type) {
	case *AuditRecordedPayload:
		if p.Tool == "" {
			return fmt.Errorf("schema validation failed for %s: tool is required", subject)
		}
	case *TaskStatusPayload:
		if p.TaskID == "" || p.Status == "" {
			return fmt.Errorf("schema validation failed for %s: task_id and status are required", subject)
		}
	}
	return nil
}
