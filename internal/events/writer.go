package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Writer appends audit log rows. Entries are write-only: the API never reads
// them back.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, requestID, format string, args ...any) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := w.DB.ExecContext(ctx, `INSERT INTO logs(ts,request_id,message) VALUES (?,?,?)`,
		ts, nullable(requestID), fmt.Sprintf(format, args...))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
