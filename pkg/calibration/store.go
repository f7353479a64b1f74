package calibration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-gaze/pkg/display"
)

// timeLayout is fixed width so fitted_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists calibration models in SQLite so a calibration survives
// restarts on the same monitor layout.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS calibrations (
			id              TEXT PRIMARY KEY,
			method          TEXT NOT NULL,
			coeff_x         TEXT NOT NULL,
			coeff_y         TEXT NOT NULL,
			accuracy_px     DOUBLE NOT NULL,
			virtual_left    INTEGER NOT NULL,
			virtual_top     INTEGER NOT NULL,
			virtual_width   INTEGER NOT NULL,
			virtual_height  INTEGER NOT NULL,
			sample_count    INTEGER NOT NULL,
			samples         TEXT,
			fitted_at       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS calibrations_geometry_idx
			ON calibrations (virtual_width, virtual_height, fitted_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("calibration: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save stores m together with the samples it was fit from.
func (s *Store) Save(ctx context.Context, m *Model, samples []Sample) error {
	cx, err := json.Marshal(m.X)
	if err != nil {
		return err
	}
	cy, err := json.Marshal(m.Y)
	if err != nil {
		return err
	}
	var sj []byte
	if len(samples) > 0 {
		if sj, err = json.Marshal(samples); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calibrations (id, method, coeff_x, coeff_y, accuracy_px,
			virtual_left, virtual_top, virtual_width, virtual_height,
			sample_count, samples, fitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			method = excluded.method,
			coeff_x = excluded.coeff_x,
			coeff_y = excluded.coeff_y,
			accuracy_px = excluded.accuracy_px,
			samples = excluded.samples
	`, m.ID, string(m.Method), string(cx), string(cy), m.Accuracy,
		m.Geometry.Left, m.Geometry.Top, m.Geometry.Width, m.Geometry.Height,
		m.Samples, nullString(sj), m.FittedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("calibration: save %s: %w", m.ID, err)
	}
	return nil
}

func nullString(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: len(b) > 0}
}

const selectColumns = `id, method, coeff_x, coeff_y, accuracy_px,
	virtual_left, virtual_top, virtual_width, virtual_height,
	sample_count, samples, fitted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(row scanner) (*Model, []Sample, error) {
	var (
		m        Model
		method   string
		cx, cy   string
		samples  sql.NullString
		fittedAt string
	)
	err := row.Scan(&m.ID, &method, &cx, &cy, &m.Accuracy,
		&m.Geometry.Left, &m.Geometry.Top, &m.Geometry.Width, &m.Geometry.Height,
		&m.Samples, &samples, &fittedAt)
	if err != nil {
		return nil, nil, err
	}
	m.Method = Method(method)
	if err := json.Unmarshal([]byte(cx), &m.X); err != nil {
		return nil, nil, fmt.Errorf("calibration: decode x coefficients: %w", err)
	}
	if err := json.Unmarshal([]byte(cy), &m.Y); err != nil {
		return nil, nil, fmt.Errorf("calibration: decode y coefficients: %w", err)
	}
	if m.FittedAt, err = time.Parse(timeLayout, fittedAt); err != nil {
		return nil, nil, fmt.Errorf("calibration: decode fitted_at: %w", err)
	}

	var ss []Sample
	if samples.Valid && samples.String != "" {
		if err := json.Unmarshal([]byte(samples.String), &ss); err != nil {
			return nil, nil, fmt.Errorf("calibration: decode samples: %w", err)
		}
	}
	return &m, ss, nil
}

// Latest returns the newest model fit against a desktop of g's size.
func (s *Store) Latest(ctx context.Context, g display.Geometry) (*Model, []Sample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+`
		FROM calibrations
		WHERE virtual_width = ? AND virtual_height = ?
		ORDER BY fitted_at DESC
		LIMIT 1`, g.Width, g.Height)
	m, samples, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	return m, samples, err
}

// Get returns the model with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Model, []Sample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM calibrations WHERE id = ?`, id)
	m, samples, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	return m, samples, err
}

// List returns every stored model, newest first.
func (s *Store) List(ctx context.Context) ([]*Model, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM calibrations ORDER BY fitted_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Model
	for rows.Next() {
		m, _, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes every model fit against a desktop of g's size and
// returns how many were removed.
func (s *Store) Delete(ctx context.Context, g display.Geometry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM calibrations WHERE virtual_width = ? AND virtual_height = ?`, g.Width, g.Height)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Clear removes every model.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calibrations`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
