package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Recording is the header row of a captured hand-pose session.
type Recording struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Samples   int           `json:"samples"`
	CreatedAt time.Time     `json:"created_at"`
}

// RecordingRepository provides CRUD operations for recordings.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create inserts a recording and all of its samples in one transaction.
// Samples gets overwritten with len(samples).
func (r *RecordingRepository) Create(rec *Recording, samples []Sample) error {
	rec.CreatedAt = time.Now()
	rec.Samples = len(samples)

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO recordings (id, name, started_at, duration_us, samples, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.StartedAt, rec.Duration.Microseconds(), rec.Samples, rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err := insertSamples(tx, rec.ID, samples); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a recording header by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	row := r.db.QueryRow(
		`SELECT id, name, started_at, duration_us, samples, created_at
		 FROM recordings WHERE id = ?`,
		id,
	)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns every recording, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, name, started_at, duration_us, samples, created_at
		 FROM recordings ORDER BY started_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Rename changes a recording's display name.
func (r *RecordingRepository) Rename(id, name string) error {
	result, err := r.db.Exec(`UPDATE recordings SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a recording; its samples go with it.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*Recording, error) {
	rec := &Recording{}
	var durationUS int64
	if err := s.Scan(&rec.ID, &rec.Name, &rec.StartedAt, &durationUS, &rec.Samples, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	return rec, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
