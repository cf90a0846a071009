// Package storage provides SQLite-backed persistence for viewed watermarks,
// pinned alerts, and the saved movers rule.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/asxtracker/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "asxtracker", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watermarks (
			scope     TEXT PRIMARY KEY,
			viewed_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pinned_alerts (
			id            TEXT PRIMARY KEY,
			code          TEXT NOT NULL,
			name          TEXT,
			intent        TEXT NOT NULL,
			direction     TEXT,
			extreme       TEXT,
			price         REAL NOT NULL DEFAULT 0,
			pct_change    REAL NOT NULL DEFAULT 0,
			dollar_change REAL NOT NULL DEFAULT 0,
			prev_close    REAL NOT NULL DEFAULT 0,
			industry      TEXT,
			source        TEXT NOT NULL,
			is_local      INTEGER NOT NULL DEFAULT 0,
			hit_at        INTEGER NOT NULL,
			pinned_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pinned_alerts_pinned_at ON pinned_alerts(pinned_at DESC)`,
		`CREATE TABLE IF NOT EXISTS rules (
			id             INTEGER PRIMARY KEY CHECK (id = 1),
			up_pct         REAL,
			up_dollar      REAL,
			down_pct       REAL,
			down_dollar    REAL,
			min_price      REAL,
			hilo_min_price REAL,
			movers_enabled INTEGER NOT NULL DEFAULT 1,
			industries     TEXT NOT NULL DEFAULT '[]'
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveWatermark persists the viewed timestamp for one badge scope.
func (s *Storage) SaveWatermark(scope models.BadgeScope, viewedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO watermarks (scope, viewed_at) VALUES (?, ?)`,
		string(scope), viewedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save watermark: %w", err)
	}
	return nil
}

// LoadWatermarks returns the persisted watermark pair. Scopes never viewed
// come back as the zero time.
func (s *Storage) LoadWatermarks() (models.Watermarks, error) {
	rows, err := s.db.Query(`SELECT scope, viewed_at FROM watermarks`)
	if err != nil {
		return models.Watermarks{}, fmt.Errorf("failed to query watermarks: %w", err)
	}
	defer rows.Close()

	var w models.Watermarks
	for rows.Next() {
		var scope string
		var viewedAtMs int64
		if err := rows.Scan(&scope, &viewedAtMs); err != nil {
			return models.Watermarks{}, fmt.Errorf("failed to scan watermark: %w", err)
		}
		switch models.BadgeScope(scope) {
		case models.ScopeTotal:
			w.Total = time.UnixMilli(viewedAtMs)
		case models.ScopeCustom:
			w.Custom = time.UnixMilli(viewedAtMs)
		}
	}
	return w, rows.Err()
}

// AddPinnedAlert persists a pinned alert snapshot.
func (s *Storage) AddPinnedAlert(pin *models.PinnedAlert) error {
	if err := pin.Hit.Validate(); err != nil {
		return fmt.Errorf("invalid pinned alert: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO pinned_alerts
			(id, code, name, intent, direction, extreme, price, pct_change,
			 dollar_change, prev_close, industry, source, is_local, hit_at, pinned_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		pin.ID, pin.Hit.Code, pin.Hit.Name, string(pin.Hit.Intent),
		string(pin.Hit.Direction), string(pin.Hit.Extreme),
		pin.Hit.Price, pin.Hit.PctChange, pin.Hit.DollarChange, pin.Hit.PrevClose,
		pin.Hit.Industry, string(pin.Hit.Source), boolToInt(pin.Hit.IsLocal),
		pin.Hit.Timestamp.UnixMilli(), pin.PinnedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pinned alert: %w", err)
	}
	return nil
}

// RemovePinnedAlert deletes a pinned alert by id.
func (s *Storage) RemovePinnedAlert(id string) error {
	res, err := s.db.Exec(`DELETE FROM pinned_alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove pinned alert: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("pinned alert not found: %s", id)
	}
	return nil
}

// GetPinnedAlerts returns all pinned alerts, newest pin first.
func (s *Storage) GetPinnedAlerts() ([]models.PinnedAlert, error) {
	rows, err := s.db.Query(`
		SELECT id, code, name, intent, direction, extreme, price, pct_change,
		       dollar_change, prev_close, industry, source, is_local, hit_at, pinned_at
		FROM pinned_alerts ORDER BY pinned_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pinned alerts: %w", err)
	}
	defer rows.Close()

	var pins []models.PinnedAlert
	for rows.Next() {
		var p models.PinnedAlert
		var intent, direction, extreme, source string
		var isLocal int
		var hitAtMs, pinnedAtMs int64

		err := rows.Scan(
			&p.ID, &p.Hit.Code, &p.Hit.Name, &intent, &direction, &extreme,
			&p.Hit.Price, &p.Hit.PctChange, &p.Hit.DollarChange, &p.Hit.PrevClose,
			&p.Hit.Industry, &source, &isLocal, &hitAtMs, &pinnedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pinned alert: %w", err)
		}

		p.Hit.Intent = models.Intent(intent)
		p.Hit.Direction = models.Direction(direction)
		p.Hit.Extreme = models.Extreme(extreme)
		p.Hit.Source = models.Source(source)
		p.Hit.IsLocal = isLocal != 0
		p.Hit.Timestamp = time.UnixMilli(hitAtMs)
		p.PinnedAt = time.UnixMilli(pinnedAtMs)
		pins = append(pins, p)
	}
	if pins == nil {
		pins = []models.PinnedAlert{}
	}
	return pins, rows.Err()
}

// SaveRule persists the movers rule as the single saved row.
func (s *Storage) SaveRule(rule *models.Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	industriesJSON, err := json.Marshal(rule.ActiveIndustries)
	if err != nil {
		return fmt.Errorf("failed to marshal industries: %w", err)
	}
	if rule.ActiveIndustries == nil {
		industriesJSON = []byte(`[]`)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO rules
			(id, up_pct, up_dollar, down_pct, down_dollar, min_price,
			 hilo_min_price, movers_enabled, industries)
		VALUES (1,?,?,?,?,?,?,?,?)`,
		nullFloat(rule.Up.Percent), nullFloat(rule.Up.Dollar),
		nullFloat(rule.Down.Percent), nullFloat(rule.Down.Dollar),
		nullFloat(rule.MinPrice), nullFloat(rule.HiLoMinPrice),
		boolToInt(rule.MoversEnabled), string(industriesJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// LoadRule returns the saved movers rule, or nil when none has been saved.
func (s *Storage) LoadRule() (*models.Rule, error) {
	row := s.db.QueryRow(`
		SELECT up_pct, up_dollar, down_pct, down_dollar, min_price,
		       hilo_min_price, movers_enabled, industries
		FROM rules WHERE id = 1`)

	var upPct, upDollar, downPct, downDollar, minPrice, hiloMinPrice sql.NullFloat64
	var moversEnabled int
	var industriesJSON string

	err := row.Scan(&upPct, &upDollar, &downPct, &downDollar,
		&minPrice, &hiloMinPrice, &moversEnabled, &industriesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}

	rule := &models.Rule{
		Up: models.ThresholdPair{
			Percent: fromNullFloat(upPct),
			Dollar:  fromNullFloat(upDollar),
		},
		Down: models.ThresholdPair{
			Percent: fromNullFloat(downPct),
			Dollar:  fromNullFloat(downDollar),
		},
		MinPrice:      fromNullFloat(minPrice),
		HiLoMinPrice:  fromNullFloat(hiloMinPrice),
		MoversEnabled: moversEnabled != 0,
	}
	if err := json.Unmarshal([]byte(industriesJSON), &rule.ActiveIndustries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal industries: %w", err)
	}
	return rule, nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
