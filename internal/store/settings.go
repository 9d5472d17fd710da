package store

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/ayusman/handsfree/internal/state"
)

// SettingsRepository provides access to key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

func flagKey(t state.Target) string {
	return "flag." + string(t)
}

// SaveFlag persists one control flag.
func (r *SettingsRepository) SaveFlag(t state.Target, enabled bool) error {
	return r.Set(flagKey(t), strconv.FormatBool(enabled))
}

// LoadFlags returns the persisted flags, using defaults for any flag that
// was never saved or holds an unreadable value.
func (r *SettingsRepository) LoadFlags(defaults state.Flags) (state.Flags, error) {
	flags := defaults
	for _, t := range state.Targets {
		value, err := r.Get(flagKey(t))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return defaults, err
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			continue
		}
		switch t {
		case state.TargetMouse:
			flags.MouseControl = enabled
		case state.TargetSpeech:
			flags.SpeechControl = enabled
		case state.TargetAutoType:
			flags.AutoType = enabled
		}
	}
	return flags, nil
}
