package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handsfree/internal/state"
)

// TranscriptRecord is one journaled dictation outcome.
type TranscriptRecord struct {
	ID        string     `json:"id"`
	Kind      state.Kind `json:"kind"`
	Text      string     `json:"text"`
	Payload   string     `json:"payload"`
	Typed     bool       `json:"typed"`
	CreatedAt time.Time  `json:"created_at"`
}

// TranscriptRepository provides access to the transcript journal.
type TranscriptRepository struct {
	db *sql.DB
}

// Transcripts returns the transcript repository for this store.
func (s *Store) Transcripts() *TranscriptRepository {
	return &TranscriptRepository{db: s.db}
}

// Append journals a transcript and returns the stored record.
func (r *TranscriptRepository) Append(t state.Transcript, typed bool) (*TranscriptRecord, error) {
	rec := &TranscriptRecord{
		ID:        uuid.New().String(),
		Kind:      t.Kind,
		Text:      t.Text,
		Payload:   t.Payload(),
		Typed:     typed,
		CreatedAt: t.At,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO transcripts (id, kind, text, typed, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Text, rec.Typed, rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Recent returns up to limit transcripts, newest first.
func (r *TranscriptRepository) Recent(limit int) ([]*TranscriptRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, kind, text, typed, created_at
		 FROM transcripts ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*TranscriptRecord
	for rows.Next() {
		rec := &TranscriptRecord{}
		var kind string
		if err := rows.Scan(&rec.ID, &kind, &rec.Text, &rec.Typed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = state.Kind(kind)
		rec.Payload = state.Transcript{Kind: rec.Kind, Text: rec.Text}.Payload()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetByID retrieves one transcript.
func (r *TranscriptRepository) GetByID(id string) (*TranscriptRecord, error) {
	rec := &TranscriptRecord{}
	var kind string
	err := r.db.QueryRow(
		`SELECT id, kind, text, typed, created_at FROM transcripts WHERE id = ?`, id,
	).Scan(&rec.ID, &kind, &rec.Text, &rec.Typed, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Kind = state.Kind(kind)
	rec.Payload = state.Transcript{Kind: rec.Kind, Text: rec.Text}.Payload()
	return rec, nil
}

// Prune deletes all but the newest keep transcripts and returns how many
// were removed.
func (r *TranscriptRepository) Prune(keep int) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM transcripts WHERE id NOT IN (
			SELECT id FROM transcripts ORDER BY created_at DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
