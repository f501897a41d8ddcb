// Package history keeps a per-attempt run journal in SQLite. The results
// workbook holds only each profile's latest outcome; the journal retains
// every attempt with timings, which is what you want when a profile has
// been flaky for a week and you need to see the pattern.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

// Store provides SQLite-backed attempt persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Batch is one recorded batch run.
type Batch struct {
	ID          string
	Mode        string
	Concurrency int
	StartedAt   time.Time
	FinishedAt  *time.Time
	Processed   int
	Errored     int
	TotalShare  float64
}

// Attempt is one profile's recorded pipeline attempt.
type Attempt struct {
	ID         string
	BatchID    string
	ProfileKey string
	Status     domain.RunStatus
	Result     domain.Result
	StartedAt  time.Time
	FinishedAt *time.Time
}

// BeginBatch records the start of a batch run and returns its id.
func (s *Store) BeginBatch(mode string, concurrency int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO batches (id, mode, concurrency, started_at)
		VALUES (?, ?, ?, ?)`,
		id, mode, concurrency, time.Now())
	if err != nil {
		return "", fmt.Errorf("recording batch start: %w", err)
	}
	return id, nil
}

// FinishBatch stamps the batch with its final summary.
func (s *Store) FinishBatch(batchID string, summary domain.Summary) error {
	_, err := s.db.Exec(`
		UPDATE batches
		SET finished_at = ?, processed = ?, errored = ?, total_share = ?
		WHERE id = ?`,
		time.Now(), summary.Processed, summary.Errored, summary.TotalShare, batchID)
	if err != nil {
		return fmt.Errorf("recording batch finish: %w", err)
	}
	return nil
}

// RecordAttempt appends one profile's completed attempt to the journal.
func (s *Store) RecordAttempt(batchID string, r domain.Result, startedAt time.Time) error {
	status := domain.RunCompleted
	if r.Failed() {
		status = domain.RunFailed
	}

	_, err := s.db.Exec(`
		INSERT INTO attempts (id, batch_id, profile_key, profile_id, email, status,
			login_ok, checkin_ok, convert_ok, share_points, streak, error,
			started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), batchID, r.Key(), r.ProfileID, r.Email, string(status),
		r.LoginOK, r.CheckInOK, r.ConvertOK, r.SharePoints, r.CheckInStreak, r.Error,
		startedAt, r.Timestamp)
	if err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// AttemptsForProfile returns a profile's attempts, newest first.
func (s *Store) AttemptsForProfile(profileKey string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, batch_id, profile_key, profile_id, email, status,
			login_ok, checkin_ok, convert_ok, share_points, streak, error,
			started_at, finished_at
		FROM attempts
		WHERE profile_key = ?
		ORDER BY started_at DESC
		LIMIT ?`, profileKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// AttemptsForBatch returns all attempts recorded under one batch id.
func (s *Store) AttemptsForBatch(batchID string) ([]Attempt, error) {
	rows, err := s.db.Query(`
		SELECT id, batch_id, profile_key, profile_id, email, status,
			login_ok, checkin_ok, convert_ok, share_points, streak, error,
			started_at, finished_at
		FROM attempts
		WHERE batch_id = ?
		ORDER BY started_at`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// RecentBatches returns the latest batch records, newest first.
func (s *Store) RecentBatches(limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, mode, concurrency, started_at, finished_at, processed, errored, total_share
		FROM batches
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var finished sql.NullTime
		if err := rows.Scan(&b.ID, &b.Mode, &b.Concurrency, &b.StartedAt, &finished,
			&b.Processed, &b.Errored, &b.TotalShare); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			b.FinishedAt = &t
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanAttempts(rows *sql.Rows) ([]Attempt, error) {
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&a.ID, &a.BatchID, &a.ProfileKey,
			&a.Result.ProfileID, &a.Result.Email, &status,
			&a.Result.LoginOK, &a.Result.CheckInOK, &a.Result.ConvertOK,
			&a.Result.SharePoints, &a.Result.CheckInStreak, &a.Result.Error,
			&a.StartedAt, &finished); err != nil {
			return nil, err
		}
		a.Status = domain.RunStatus(status)
		a.Result.ProfileName = a.ProfileKey
		if finished.Valid {
			t := finished.Time
			a.FinishedAt = &t
			a.Result.Timestamp = t
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
