package session

import (
	"context"
	"database/sql"
	"time"

	"github.com/cutlist/cutlist-agent/internal/cliplist"
)

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)
	UpdateSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, id string) error

	SaveClips(ctx context.Context, sessionID string, clips []cliplist.Clip) error
	LoadClips(ctx context.Context, sessionID string) ([]cliplist.Clip, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int, label string) error
	CompleteJob(ctx context.Context, id, outputPath string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// timeFormat sorts lexically in the same order as time for UTC values.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// datetime('now') written by the migration-time recovery
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, media_path, edl_path, frame_rate, duration_ms, media_missing, created_at, updated_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.MediaPath, nullString(s.EDLPath), s.FrameRate, s.Duration.Milliseconds(), boolToInt(s.MediaMissing),
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var edlPath sql.NullString
	var durationMs int64
	var missing int
	var createdAt, updatedAt string

	if err := row.Scan(&s.ID, &s.MediaPath, &edlPath, &s.FrameRate, &durationMs, &missing, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.EDLPath = edlPath.String
	s.Duration = time.Duration(durationMs) * time.Millisecond
	s.MediaMissing = missing == 1
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteRepository) UpdateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET media_path = ?, edl_path = ?, frame_rate = ?, duration_ms = ?, media_missing = ?, updated_at = ?
		WHERE id = ?
	`, s.MediaPath, nullString(s.EDLPath), s.FrameRate, s.Duration.Milliseconds(), boolToInt(s.MediaMissing),
		formatTime(s.UpdatedAt), s.ID)
	return err
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

// SaveClips replaces the stored clips of a session in one transaction.
func (r *SQLiteRepository) SaveClips(ctx context.Context, sessionID string, clips []cliplist.Clip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM clips WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	for i, c := range clips {
		var end sql.NullInt64
		if at, ok := c.End.Value(); ok {
			end = sql.NullInt64{Int64: at.Milliseconds(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clips (session_id, position, start_ms, end_ms, thumbnail) VALUES (?, ?, ?, ?, ?)
		`, sessionID, i, c.Start.Milliseconds(), end, nullString(string(c.Thumbnail))); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) LoadClips(ctx context.Context, sessionID string) ([]cliplist.Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT start_ms, end_ms, thumbnail FROM clips WHERE session_id = ? ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []cliplist.Clip
	for rows.Next() {
		var startMs int64
		var endMs sql.NullInt64
		var thumb sql.NullString
		if err := rows.Scan(&startMs, &endMs, &thumb); err != nil {
			return nil, err
		}
		c := cliplist.Clip{
			Start:     time.Duration(startMs) * time.Millisecond,
			End:       cliplist.Pending(),
			Thumbnail: cliplist.ImageRef(thumb.String),
		}
		if endMs.Valid {
			c.End = cliplist.Completed(time.Duration(endMs.Int64) * time.Millisecond)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

const jobColumns = `id, type, status, session_id, dest_path, progress, label, output_path, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.SessionID), nullString(j.DestPath), j.Progress, nullString(j.Label),
		nullString(j.OutputPath), nullString(j.Error), formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var sessionID, destPath, label, outputPath, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Type, &j.Status, &sessionID, &destPath, &j.Progress, &label, &outputPath, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	j.SessionID = sessionID.String
	j.DestPath = destPath.String
	j.Label = label.String
	j.OutputPath = outputPath.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int, label string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, label = ?, updated_at = ? WHERE id = ?
	`, progress, nullString(label), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) CompleteJob(ctx context.Context, id, outputPath string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, progress = 100, output_path = ?, error = NULL, updated_at = ? WHERE id = ?
	`, JobStatusCompleted, outputPath, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
