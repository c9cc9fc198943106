package display

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Screen names a transient full-screen mode that may show at most once per
// workout id.
type Screen string

const (
	ScreenWelcome    Screen = "welcome"
	ScreenCompletion Screen = "completion"
)

// FlagStore persists the per-workout "already shown" flags in a local SQLite
// database so a display restart never replays a welcome or celebration for
// the same workout.
type FlagStore struct {
	db *sql.DB
}

// OpenFlagStore opens (or creates) the SQLite flag database at dir/state.db.
func OpenFlagStore(dir string) (*FlagStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS shown_screens (
		workout_id TEXT NOT NULL,
		screen     TEXT NOT NULL,
		shown_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (workout_id, screen)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating shown_screens table: %w", err)
	}

	return &FlagStore{db: db}, nil
}

// WasShown reports whether a screen has already been shown for a workout.
func (s *FlagStore) WasShown(workoutID uuid.UUID, screen Screen) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM shown_screens WHERE workout_id = ? AND screen = ?`,
		workoutID.String(), string(screen),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkShown records that a screen was shown for a workout.
func (s *FlagStore) MarkShown(workoutID uuid.UUID, screen Screen) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO shown_screens (workout_id, screen) VALUES (?, ?)`,
		workoutID.String(), string(screen),
	)
	return err
}

// Close closes the flag database.
func (s *FlagStore) Close() error {
	return s.db.Close()
}
