package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// every connection to :memory: is a separate database
	if cfg.Path == memoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init opens the database connection and enables foreign keys.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if s.path != memoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// Search runs a catalogue query and decodes every row against the
// query's declared column types.
func (s *SQLiteStore) Search(ctx context.Context, id QueryID, key any) (*ResultSet, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	q, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown query %d", int(id))
	}

	var args []any
	if q.Keyed() {
		args = append(args, key)
	}

	rows, err := s.db.QueryContext(ctx, q.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query %s: %w", q.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", q.Name, err)
	}
	if len(cols) != len(q.Columns) {
		return nil, fmt.Errorf("query %s returned %d columns, declared %d", q.Name, len(cols), len(q.Columns))
	}

	rs := &ResultSet{Query: id}
	for rows.Next() {
		row, err := scanRow(rows, q)
		if err != nil {
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", q.Name, err)
	}

	return rs, nil
}

// scanRow reads one row into typed values.
func scanRow(rows *sql.Rows, q Query) (Row, error) {
	dest := make([]any, len(q.Columns))
	texts := make([]sql.NullString, len(q.Columns))
	ints := make([]sql.NullInt64, len(q.Columns))
	for i, col := range q.Columns {
		if col == ColumnText {
			dest[i] = &texts[i]
		} else {
			dest[i] = &ints[i]
		}
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", q.Name, err)
	}

	row := make(Row, len(q.Columns))
	for i, col := range q.Columns {
		switch col {
		case ColumnText:
			row[i] = Text(texts[i].String)
		case ColumnUint64:
			if ints[i].Int64 < 0 {
				return nil, fmt.Errorf("query %s: column %d is negative: %d", q.Name, i, ints[i].Int64)
			}
			row[i] = Uint(uint64(ints[i].Int64))
		case ColumnInt16:
			if ints[i].Int64 < math.MinInt16 || ints[i].Int64 > math.MaxInt16 {
				return nil, fmt.Errorf("query %s: column %d out of int16 range: %d", q.Name, i, ints[i].Int64)
			}
			row[i] = Short(int16(ints[i].Int64))
		}
	}
	return row, nil
}

// AssignBuildIP records an address for a server and points its build at
// it. Any address the server held before is released in the same
// transaction.
func (s *SQLiteStore) AssignBuildIP(ctx context.Context, ip *BuildIP) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE build SET ip_id = NULL WHERE server_id = ?`, int64(ip.ServerID))
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to update build: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("build not found for server: %d", ip.ServerID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM build_ip WHERE server_id = ?`, int64(ip.ServerID)); err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to release previous build ip: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO build_ip (ip, hostname, domainname, bd_id, server_id)
		VALUES (?, ?, ?, ?, ?)
	`, int64(ip.IP), ip.Hostname, ip.DomainName, int64(ip.DomainID), int64(ip.ServerID))
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to insert build ip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to get build ip ID: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE build SET ip_id = ? WHERE server_id = ?`, id, int64(ip.ServerID)); err != nil {
		_ = s.RollbackTx(tx)
		return fmt.Errorf("failed to update build: %w", err)
	}

	if err := s.CommitTx(tx); err != nil {
		return fmt.Errorf("failed to commit build ip: %w", err)
	}

	ip.ID = id
	return nil
}

// CreateAuditEntry creates a new audit entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (action, actor, target_id, details, ip_address, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	result, err := s.db.ExecContext(ctx, query,
		entry.Action,
		entry.Actor,
		entry.TargetID,
		entry.Details,
		entry.IPAddress,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries with optional filters and pagination
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, action, actor, target_id, details, ip_address, timestamp
		FROM audit
		WHERE (? IS NULL OR action = ?)
		  AND (? IS NULL OR actor = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, action, action, actor, actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Actor,
			&entry.TargetID,
			&entry.Details,
			&entry.IPAddress,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
