package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Sample is one recorded tracker output. Data holds the encoded pose;
// nil means no hand was seen at that offset.
type Sample struct {
	Index  int             `json:"index"`
	Offset time.Duration   `json:"offset"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SampleRepository reads recorded samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

func insertSamples(tx *sql.Tx, recordingID string, samples []Sample) error {
	stmt, err := tx.Prepare(
		`INSERT INTO recording_samples (recording_id, sample_index, offset_us, data) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range samples {
		var data any
		if s.Data != nil {
			data = string(s.Data)
		}
		if _, err := stmt.Exec(recordingID, i, s.Offset.Microseconds(), data); err != nil {
			return err
		}
	}
	return nil
}

// GetByRecordingID retrieves all samples of a recording in capture order.
func (r *SampleRepository) GetByRecordingID(recordingID string) ([]Sample, error) {
	rows, err := r.db.Query(
		`SELECT sample_index, offset_us, data
		 FROM recording_samples
		 WHERE recording_id = ?
		 ORDER BY sample_index`,
		recordingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var offsetUS int64
		var data sql.NullString
		if err := rows.Scan(&s.Index, &offsetUS, &data); err != nil {
			return nil, err
		}
		s.Offset = time.Duration(offsetUS) * time.Microsecond
		if data.Valid {
			s.Data = json.RawMessage(data.String)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
