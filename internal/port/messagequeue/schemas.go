package messagequeue

// AuditRecordedPayload is the schema for audit.recorded messages.
type AuditRecordedPayload struct {
	ID        string `json:"id"`
	Tool      string `json:"tool"`
	Input     string `json:"input"`
	Output    string `json:"output"`
	TaskID    string `json:"task_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TaskStatusPayload is the schema for tasks.status messages.
type TaskStatusPayload struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Tool   string `json:"tool,omitempty"`
}
