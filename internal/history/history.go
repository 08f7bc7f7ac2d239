package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/david-morgenstern/filebrowser/internal/logging"
	"github.com/david-morgenstern/filebrowser/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// WatchRecord is the persisted per-client, per-file viewing state.
type WatchRecord struct {
	ClientID         string  `json:"clientId"`
	FilePath         string  `json:"filePath"`
	FileName         string  `json:"fileName"`
	FileType         string  `json:"fileType"`
	FileSize         int64   `json:"fileSize"`
	FirstWatched     int64   `json:"firstWatched"`
	LastWatched      int64   `json:"lastWatched"`
	ViewCount        int     `json:"viewCount"`
	PlaybackPosition float64 `json:"playbackPosition"`
}

// Store manages the watch history database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the watch history database at dbPath. The parent
// directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Store, error) {
	// busy_timeout prevents "database is locked" errors under concurrent
	// upserts from parallel streams.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Watch history database initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS watch_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		first_watched INTEGER NOT NULL,
		last_watched INTEGER NOT NULL,
		view_count INTEGER NOT NULL DEFAULT 1,
		playback_position REAL NOT NULL DEFAULT 0,
		UNIQUE(client_id, file_path)
	);

	CREATE INDEX IF NOT EXISTS idx_watch_history_client_watched
		ON watch_history(client_id, last_watched DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordView upserts a view: an existing (client, path) record gets its
// view count incremented and last watched refreshed; otherwise a new record
// is inserted with a view count of 1.
func (s *Store) RecordView(clientID, filePath, fileName, fileType string, fileSize int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_history (client_id, file_path, file_name, file_type, file_size, first_watched, last_watched, view_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(client_id, file_path) DO UPDATE SET
			view_count = view_count + 1,
			last_watched = excluded.last_watched,
			file_size = excluded.file_size
	`, clientID, filePath, fileName, fileType, fileSize, now, now)

	s.observe("record_view", err)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// SavePosition updates the playback position of an existing record. Saving
// a position for a (client, path) pair with no prior view record is a
// deliberate no-op: positions only attach to history rows created by
// RecordView.
func (s *Store) SavePosition(clientID, filePath string, position float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE watch_history
		SET playback_position = ?, last_watched = ?
		WHERE client_id = ? AND file_path = ?
	`, position, time.Now().Unix(), clientID, filePath)

	s.observe("save_position", err)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// GetPosition returns the saved playback position for a file, or 0 when the
// client has no record for it.
func (s *Store) GetPosition(clientID, filePath string) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var position float64
	err := s.db.QueryRowContext(ctx, `
		SELECT playback_position FROM watch_history
		WHERE client_id = ? AND file_path = ?
	`, clientID, filePath).Scan(&position)

	if errors.Is(err, sql.ErrNoRows) {
		s.observe("get_position", nil)
		return 0, nil
	}
	s.observe("get_position", err)
	if err != nil {
		return 0, fmt.Errorf("get position: %w", err)
	}
	return position, nil
}

// ListHistory returns the client's records ordered by last watched
// descending, capped at limit.
func (s *Store) ListHistory(clientID string, limit int) ([]WatchRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if limit < 1 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT client_id, file_path, file_name, file_type, file_size,
		       first_watched, last_watched, view_count, playback_position
		FROM watch_history
		WHERE client_id = ?
		ORDER BY last_watched DESC
		LIMIT ?
	`, clientID, limit)

	s.observe("list_history", err)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close history rows: %v", err)
		}
	}()

	return scanRecords(rows)
}

// ContinueWatching returns the client's most recently watched video with a
// saved position, or nil when there is none.
func (s *Store) ContinueWatching(clientID string) (*WatchRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT client_id, file_path, file_name, file_type, file_size,
		       first_watched, last_watched, view_count, playback_position
		FROM watch_history
		WHERE client_id = ? AND file_type = 'video' AND playback_position > 0
		ORDER BY last_watched DESC
		LIMIT 1
	`, clientID)

	var rec WatchRecord
	err := row.Scan(&rec.ClientID, &rec.FilePath, &rec.FileName, &rec.FileType, &rec.FileSize,
		&rec.FirstWatched, &rec.LastWatched, &rec.ViewCount, &rec.PlaybackPosition)

	if errors.Is(err, sql.ErrNoRows) {
		s.observe("continue_watching", nil)
		return nil, nil
	}
	s.observe("continue_watching", err)
	if err != nil {
		return nil, fmt.Errorf("continue watching: %w", err)
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]WatchRecord, error) {
	records := []WatchRecord{}
	for rows.Next() {
		var rec WatchRecord
		if err := rows.Scan(&rec.ClientID, &rec.FilePath, &rec.FileName, &rec.FileType, &rec.FileSize,
			&rec.FirstWatched, &rec.LastWatched, &rec.ViewCount, &rec.PlaybackPosition); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) observe(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.HistoryQueriesTotal.WithLabelValues(operation, status).Inc()
}
