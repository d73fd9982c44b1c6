// Package sqlite provides a SQLite-backed engine.LocalStore: the record
// table, the outbox of pending local changes, and sync progress state all
// live in one database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	stdSync "sync"
	"time"

	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/datastore"
	"github.com/alvintu/swift-ui-aws-amplify/engine"
	syncErrors "github.com/alvintu/swift-ui-aws-amplify/errors"
	"github.com/alvintu/swift-ui-aws-amplify/logging"

	_ "github.com/mattn/go-sqlite3"
)

const (
	opApply      = "sqlite.ApplyRemote"
	opPending    = "sqlite.Pending"
	opAck        = "sqlite.Ack"
	opEnqueue    = "sqlite.Enqueue"
	opCheckpoint = "sqlite.Checkpoint"
	opBaseSync   = "sqlite.BaseSync"
)

const component = "storage/sqlite"

const (
	stateCheckpoint   = "checkpoint"
	stateLastBaseSync = "last_base_sync"
)

// ErrStoreClosed is returned by all operations after Close.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the RecordStore.
//
// Production-ready defaults are applied by DefaultConfig() including WAL
// mode and a bounded connection pool.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:datastore.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, automatically appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor using DefaultConfig.
func NewWithDataSource(dataSourceName string) (*RecordStore, error) {
	return New(DefaultConfig(dataSourceName))
}

// RecordStore implements engine.LocalStore on SQLite.
type RecordStore struct {
	db     *sql.DB
	mu     stdSync.RWMutex
	closed bool
	logger *logging.Logger
}

var _ engine.LocalStore = (*RecordStore)(nil)

// New opens (or creates) the database and prepares the schema.
func New(config *Config) (*RecordStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := logging.Default().WithComponent(logging.Component(component))
	logger.Info("opening sqlite database",
		"data_source", config.DataSourceName,
		"wal_enabled", config.EnableWAL,
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &RecordStore{db: db, logger: logger}
	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}
	return store, nil
}

func (s *RecordStore) setupSchema() error {
	query := `
    CREATE TABLE IF NOT EXISTS records (
        id         TEXT PRIMARY KEY,
        model      TEXT NOT NULL,
        fields     TEXT,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_records_model ON records (model);

    CREATE TABLE IF NOT EXISTS outbox (
        seq       INTEGER PRIMARY KEY AUTOINCREMENT,
        record_id TEXT NOT NULL,
        model     TEXT NOT NULL,
        op        TEXT NOT NULL,
        fields    TEXT,
        queued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_outbox_record_id ON outbox (record_id);

    CREATE TABLE IF NOT EXISTS sync_state (
        key   TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(query)
	return err
}

func (s *RecordStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// ApplyRemote upserts remote record versions in a single transaction.
func (s *RecordStore) ApplyRemote(ctx context.Context, records []datastore.Record) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opApply, component)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO records (id, model, fields, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(id) DO UPDATE SET model = excluded.model, fields = excluded.fields, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opApply, component)
	}
	defer stmt.Close()

	for _, r := range records {
		var fieldsJSON []byte
		fieldsJSON, err = json.Marshal(r.Fields())
		if err != nil {
			return syncErrors.WrapOpComponent(err, opApply, component)
		}
		if _, err = stmt.ExecContext(ctx, r.ID(), r.Model(), string(fieldsJSON)); err != nil {
			return syncErrors.WrapOpComponent(err, opApply, component)
		}
	}

	if err = tx.Commit(); err != nil {
		return syncErrors.WrapOpComponent(err, opApply, component)
	}
	return nil
}

// Pending returns up to limit queued changes in enqueue order.
func (s *RecordStore) Pending(ctx context.Context, limit int) ([]engine.Change, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	query := `SELECT seq, record_id, model, op, fields FROM outbox ORDER BY seq ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opPending, component)
	}
	defer rows.Close()

	var changes []engine.Change
	for rows.Next() {
		var seq int64
		var id, model, op string
		var fieldsJSON sql.NullString
		if err := rows.Scan(&seq, &id, &model, &op, &fieldsJSON); err != nil {
			return nil, syncErrors.WrapOpComponent(err, opPending, component)
		}

		var fields map[string]any
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if err := json.Unmarshal([]byte(fieldsJSON.String), &fields); err != nil {
				return nil, syncErrors.WrapOpComponent(err, opPending, component)
			}
		}
		changes = append(changes, engine.Change{
			Record: datastore.NewRecordWithID(model, id, fields),
			Op:     engine.ChangeOp(op),
			Seq:    seq,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opPending, component)
	}
	return changes, nil
}

// Ack removes the queued changes with the given outbox sequence numbers.
// A record may have several queued changes; only the acked ones go away.
func (s *RecordStore) Ack(ctx context.Context, seqs []int64) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if len(seqs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(seqs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		args[i] = seq
	}

	query := fmt.Sprintf(`DELETE FROM outbox WHERE seq IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return syncErrors.WrapOpComponent(err, opAck, component)
	}
	return nil
}

// Enqueue appends a change to the outbox.
func (s *RecordStore) Enqueue(ctx context.Context, change engine.Change) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	fieldsJSON, err := json.Marshal(change.Record.Fields())
	if err != nil {
		return syncErrors.WrapOpComponent(err, opEnqueue, component)
	}

	query := `INSERT INTO outbox (record_id, model, op, fields) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, change.Record.ID(), change.Record.Model(), string(change.Op), string(fieldsJSON))
	if err != nil {
		return syncErrors.WrapOpComponent(err, opEnqueue, component)
	}
	return nil
}

// Checkpoint returns the saved delta cursor, or nil if none is saved.
func (s *RecordStore) Checkpoint(ctx context.Context) (cursor.Cursor, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	value, ok, err := s.stateValue(ctx, stateCheckpoint)
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opCheckpoint, component)
	}
	if !ok {
		return nil, nil
	}

	c, err := cursor.Decode([]byte(value))
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opCheckpoint, component)
	}
	return c, nil
}

// SaveCheckpoint persists the delta cursor in its wire form.
func (s *RecordStore) SaveCheckpoint(ctx context.Context, c cursor.Cursor) error {
	if s.isClosed() {
		return ErrStoreClosed
	}

	data, err := cursor.Encode(c)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opCheckpoint, component)
	}
	if err := s.setStateValue(ctx, stateCheckpoint, string(data)); err != nil {
		return syncErrors.WrapOpComponent(err, opCheckpoint, component)
	}
	return nil
}

// LastBaseSync returns when the last base sync completed, or the zero time.
func (s *RecordStore) LastBaseSync(ctx context.Context) (time.Time, error) {
	if s.isClosed() {
		return time.Time{}, ErrStoreClosed
	}

	value, ok, err := s.stateValue(ctx, stateLastBaseSync)
	if err != nil {
		return time.Time{}, syncErrors.WrapOpComponent(err, opBaseSync, component)
	}
	if !ok {
		return time.Time{}, nil
	}

	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, syncErrors.WrapOpComponent(err, opBaseSync, component)
	}
	return at, nil
}

// MarkBaseSync records the completion time of a base sync.
func (s *RecordStore) MarkBaseSync(ctx context.Context, at time.Time) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if err := s.setStateValue(ctx, stateLastBaseSync, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return syncErrors.WrapOpComponent(err, opBaseSync, component)
	}
	return nil
}

// Record loads one record by ID. The second result reports presence.
func (s *RecordStore) Record(ctx context.Context, id string) (datastore.Record, bool, error) {
	if s.isClosed() {
		return nil, false, ErrStoreClosed
	}

	var model string
	var fieldsJSON sql.NullString
	query := `SELECT model, fields FROM records WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&model, &fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, syncErrors.WrapOpComponent(err, opApply, component)
	}

	var fields map[string]any
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &fields); err != nil {
			return nil, false, syncErrors.WrapOpComponent(err, opApply, component)
		}
	}
	return datastore.NewRecordWithID(model, id, fields), true, nil
}

// Stats returns database statistics for monitoring.
func (s *RecordStore) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sql.DBStats{}
	}
	return s.db.Stats()
}

// Close closes the database connection.
func (s *RecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *RecordStore) stateValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RecordStore) setStateValue(ctx context.Context, key, value string) error {
	query := `INSERT INTO sync_state (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}
