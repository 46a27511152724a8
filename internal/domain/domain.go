package domain

// Command is a single control instruction directed at a named robot. The id
// is assigned by the store and stays stable for the record's lifetime; the
// other fields are overwritten in place on update.
type Command struct {
	ID          int64  `json:"id"`
	CommandText string `json:"commandText"`
	Robot       string `json:"robot"`
	User        string `json:"user"`
}

// RobotStatus is the last known state descriptor for the robot. Read-only
// from the API; an external writer populates it.
type RobotStatus struct {
	Status   string `json:"status"`
	Position string `json:"position"`
	Task     string `json:"task"`
}

// DefaultStatus is substituted when no status row exists. The substitution
// is computed per read and never written back.
func DefaultStatus() RobotStatus {
	return RobotStatus{Status: "Idle", Position: "0,0", Task: "None"}
}

// LogEntry is a write-only audit record. Nothing on the API surface reads
// these back; the CLI can tail them.
type LogEntry struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message"`
}
