package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"courtclub/internal/domain"
	"courtclub/internal/models"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB is the SQL backend of the remote store. One table per collection, every
// column named after the record key.
type DB struct {
	db     *sql.DB
	driver string
	path   string
	logger *zerolog.Logger
}

var _ domain.RemoteStore = (*DB)(nil)

// Options of the schema created on open.
type Options struct {
	// EnforceUniqueSlot adds a UNIQUE index on reservations(date, time_label).
	EnforceUniqueSlot bool
}

// NewSQLite opens (and creates) the database file at path.
func NewSQLite(path string, opts Options, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// каждое соединение получает свою пустую базу
		sqlDB.SetMaxOpenConns(1)
	}

	return open(sqlDB, DriverSQLite, path, opts, logger)
}

// NewPostgres connects with a lib/pq DSN.
func NewPostgres(dsn string, opts Options, logger *zerolog.Logger) (*DB, error) {
	sqlDB, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return open(sqlDB, DriverPostgres, "", opts, logger)
}

func open(sqlDB *sql.DB, driver, path string, opts Options, logger *zerolog.Logger) (*DB, error) {
	// Проверяем соединение
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &DB{db: sqlDB, driver: driver, path: path, logger: logger}
	if err := d.createTables(opts); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", driver).Str("path", path).Msg("Database initialized")
	return d, nil
}

func (d *DB) columnType(col string) string {
	switch col {
	case "duration_minutes":
		return "INTEGER NOT NULL DEFAULT 0"
	case "total_price":
		if d.driver == DriverPostgres {
			return "DOUBLE PRECISION NOT NULL DEFAULT 0"
		}
		return "REAL NOT NULL DEFAULT 0"
	case "id":
		return "TEXT PRIMARY KEY"
	default:
		// даты храним строками, иначе драйвер sqlite превращает их в time.Time
		return "TEXT NOT NULL DEFAULT ''"
	}
}

func (d *DB) createTables(opts Options) error {
	var queries []string
	for _, c := range []models.Collection{models.CollectionReservations, models.CollectionWaitlist, models.CollectionMembers} {
		cols := make([]string, 0, len(models.Columns[c]))
		for _, col := range models.Columns[c] {
			cols = append(cols, col+" "+d.columnType(col))
		}
		queries = append(queries,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", c, strings.Join(cols, ",\n    ")),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", c, models.DefaultOrder[c], c, models.DefaultOrder[c]),
		)
	}
	queries = append(queries, `CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(date, time_label)`)
	if opts.EnforceUniqueSlot {
		queries = append(queries, `CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_slot ON reservations(date, time_label)`)
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func knownCollection(c models.Collection) bool {
	_, ok := models.Columns[c]
	return ok
}

// classify maps driver errors onto the remote store taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
		}
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %v", domain.ErrRecordRejected, err)
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %v", domain.ErrDuplicateRecord, err)
		case pqErr.Code.Class() == "23" || pqErr.Code.Class() == "22":
			return fmt.Errorf("%w: %v", domain.ErrRecordRejected, err)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func (d *DB) Insert(ctx context.Context, collection models.Collection, record models.Record) error {
	if !knownCollection(collection) {
		return fmt.Errorf("%w: unknown collection %q", domain.ErrRecordRejected, collection)
	}
	if record.ID() == "" {
		return fmt.Errorf("%w: record without id", domain.ErrRecordRejected)
	}

	cols := make([]string, 0, len(record))
	args := make([]any, 0, len(record))
	for _, col := range models.Columns[collection] {
		if val, ok := record[col]; ok {
			cols = append(cols, col)
			args = append(args, val)
		}
	}
	for key := range record {
		if !models.HasColumn(collection, key) {
			return fmt.Errorf("%w: unknown column %q", domain.ErrRecordRejected, key)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		collection, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := d.db.ExecContext(ctx, d.rebind(query), args...); err != nil {
		return classify(err)
	}
	return nil
}

func (d *DB) FetchAll(ctx context.Context, collection models.Collection, orderBy string) ([]models.Record, error) {
	if !knownCollection(collection) {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrRecordRejected, collection)
	}
	if orderBy == "" {
		orderBy = models.DefaultOrder[collection]
	}
	if !models.HasColumn(collection, orderBy) {
		return nil, fmt.Errorf("%w: cannot order by %q", domain.ErrRecordRejected, orderBy)
	}

	cols := models.Columns[collection]
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s ASC, id ASC", strings.Join(cols, ", "), collection, orderBy)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classify(err)
		}
		rec := make(models.Record, len(cols))
		for i, col := range cols {
			rec[col] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func (d *DB) Update(ctx context.Context, collection models.Collection, id string, record models.Record) error {
	if !knownCollection(collection) {
		return fmt.Errorf("%w: unknown collection %q", domain.ErrRecordRejected, collection)
	}

	var sets []string
	var args []any
	for _, col := range models.Columns[collection] {
		if col == "id" {
			continue
		}
		if val, ok := record[col]; ok {
			sets = append(sets, col+" = ?")
			args = append(args, val)
		}
	}
	for key := range record {
		if !models.HasColumn(collection, key) {
			return fmt.Errorf("%w: unknown column %q", domain.ErrRecordRejected, key)
		}
	}
	if len(sets) == 0 {
		return fmt.Errorf("%w: nothing to update", domain.ErrRecordRejected)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", collection, strings.Join(sets, ", "))
	result, err := d.db.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result, collection, id)
}

func (d *DB) Delete(ctx context.Context, collection models.Collection, id string) error {
	if !knownCollection(collection) {
		return fmt.Errorf("%w: unknown collection %q", domain.ErrRecordRejected, collection)
	}
	result, err := d.db.ExecContext(ctx, d.rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", collection)), id)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result, collection, id)
}

func expectOneRow(result sql.Result, collection models.Collection, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	return nil
}

// Path returns the sqlite file path, empty for postgres.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) Driver() string {
	return d.driver
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
