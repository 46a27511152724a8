package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"robotctl/internal/domain"
)

// Repo owns the command, status and log tables. Command ids are assigned by
// the store and are unique and monotonic; SQLite serializes writers, so
// concurrent inserts never collide and an update is atomic with respect to a
// concurrent read of the same id.
type Repo struct {
	DB  *sql.DB
	Now func() time.Time
}

var ErrNotFound = errors.New("not found")

func (r Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// InsertCommand persists a new command and returns it with the assigned id.
func (r Repo) InsertCommand(ctx context.Context, c domain.Command) (domain.Command, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO commands(command_text,robot,user,created_at) VALUES (?,?,?,?)`,
		c.CommandText, c.Robot, c.User, r.now().UTC().Format(time.RFC3339))
	if err != nil {
		return domain.Command{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Command{}, err
	}
	c.ID = id
	return c, nil
}

// GetCommand returns the command with the given id or ErrNotFound.
func (r Repo) GetCommand(ctx context.Context, id int64) (domain.Command, error) {
	var c domain.Command
	err := r.DB.QueryRowContext(ctx, `SELECT id,command_text,robot,user FROM commands WHERE id=?`, id).
		Scan(&c.ID, &c.CommandText, &c.Robot, &c.User)
	if err == sql.ErrNoRows {
		return domain.Command{}, ErrNotFound
	}
	return c, err
}

// UpdateCommand overwrites the mutable fields of an existing command,
// preserving its id. Strict precondition: the id must already exist; there
// is no upsert.
func (r Repo) UpdateCommand(ctx context.Context, id int64, c domain.Command) (domain.Command, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE commands SET command_text=?,robot=?,user=? WHERE id=?`,
		c.CommandText, c.Robot, c.User, id)
	if err != nil {
		return domain.Command{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Command{}, err
	}
	if affected == 0 {
		return domain.Command{}, ErrNotFound
	}
	c.ID = id
	return c, nil
}

// ListCommands returns all commands in creation order.
func (r Repo) ListCommands(ctx context.Context) ([]domain.Command, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,command_text,robot,user FROM commands ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Command
	for rows.Next() {
		var c domain.Command
		if err := rows.Scan(&c.ID, &c.CommandText, &c.Robot, &c.User); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// CountCommands returns the number of stored commands.
func (r Repo) CountCommands(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`).Scan(&n)
	return n, err
}

// CurrentStatus returns the stored status snapshot, or the default Idle
// snapshot when none exists. The default is never written back.
func (r Repo) CurrentStatus(ctx context.Context) (domain.RobotStatus, error) {
	var s domain.RobotStatus
	err := r.DB.QueryRowContext(ctx, `SELECT status,position,task FROM robot_status WHERE id=1`).
		Scan(&s.Status, &s.Position, &s.Task)
	if err == sql.ErrNoRows {
		return domain.DefaultStatus(), nil
	}
	return s, err
}

// SetStatus upserts the single logical status row. Only the external writer
// (the CLI) calls this; the HTTP surface has no status-write endpoint.
func (r Repo) SetStatus(ctx context.Context, s domain.RobotStatus) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO robot_status(id,status,position,task,updated_at) VALUES (1,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET status=excluded.status,position=excluded.position,task=excluded.task,updated_at=excluded.updated_at`,
		s.Status, s.Position, s.Task, r.now().UTC().Format(time.RFC3339))
	return err
}

// LatestLogs returns the most recent n log entries, newest first.
func (r Repo) LatestLogs(ctx context.Context, n int) ([]domain.LogEntry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,COALESCE(request_id,''),message FROM logs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.RequestID, &e.Message); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
