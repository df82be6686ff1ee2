package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/filevalidator"
)

// Dialect selects placeholder syntax
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// timeLayout is fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = `upload_id, bucket, object_key, original_filename, document_category, status,
	location_bucket, location_key, duplicate_of, fingerprint, result, created_at`

// SQLStore is a RecordStore over database/sql. The full validation result
// is kept as a JSON column; fingerprint and status are broken out for
// lookup.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens the database for dialect and creates the schema
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer; avoids SQLITE_BUSY under concurrent admissions
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLStore(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	switch dialect {
	case SQLite, Postgres:
	default:
		return nil, fmt.Errorf("unsupported SQL dialect: %s", dialect)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// Migrate creates the records table and its fingerprint index
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS upload_records (
		upload_id TEXT PRIMARY KEY,
		bucket TEXT NOT NULL,
		object_key TEXT NOT NULL,
		original_filename TEXT NOT NULL DEFAULT '',
		document_category TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		location_bucket TEXT NOT NULL DEFAULT '',
		location_key TEXT NOT NULL DEFAULT '',
		duplicate_of TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_upload_records_fingerprint ON upload_records (fingerprint, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate records: %w", err)
		}
	}
	return nil
}

// SaveRecord implements filegate.RecordStore as an upsert on upload_id
func (s *SQLStore) SaveRecord(ctx context.Context, rec *filegate.Record) error {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	query := s.rebind(`INSERT INTO upload_records (` + recordColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (upload_id) DO UPDATE SET
		bucket = EXCLUDED.bucket,
		object_key = EXCLUDED.object_key,
		original_filename = EXCLUDED.original_filename,
		document_category = EXCLUDED.document_category,
		status = EXCLUDED.status,
		location_bucket = EXCLUDED.location_bucket,
		location_key = EXCLUDED.location_key,
		duplicate_of = EXCLUDED.duplicate_of,
		fingerprint = EXCLUDED.fingerprint,
		result = EXCLUDED.result,
		created_at = EXCLUDED.created_at`)

	_, err = s.db.ExecContext(ctx, query,
		rec.UploadID, rec.Bucket, rec.Key, rec.OriginalFilename, rec.DocumentCategory, string(rec.Status),
		rec.Location.Bucket, rec.Location.Key, rec.DuplicateOf, rec.Fingerprint(), string(result),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.UploadID, err)
	}
	return nil
}

// FindByFingerprint implements filegate.RecordStore
func (s *SQLStore) FindByFingerprint(ctx context.Context, fingerprint string) (*filegate.Record, error) {
	if fingerprint == "" {
		return nil, filegate.ErrRecordNotFound
	}
	query := s.rebind(`SELECT ` + recordColumns + ` FROM upload_records
	WHERE fingerprint = ?
	ORDER BY created_at ASC, upload_id ASC
	LIMIT 1`)
	return s.queryOne(ctx, query, fingerprint)
}

// Get returns the record for an upload ID
func (s *SQLStore) Get(ctx context.Context, uploadID string) (*filegate.Record, error) {
	query := s.rebind(`SELECT ` + recordColumns + ` FROM upload_records WHERE upload_id = ?`)
	return s.queryOne(ctx, query, uploadID)
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) queryOne(ctx context.Context, query string, arg any) (*filegate.Record, error) {
	row := s.db.QueryRowContext(ctx, query, arg)

	var (
		rec         filegate.Record
		status      string
		fingerprint string
		result      string
		createdAt   string
	)
	err := row.Scan(&rec.UploadID, &rec.Bucket, &rec.Key, &rec.OriginalFilename, &rec.DocumentCategory, &status,
		&rec.Location.Bucket, &rec.Location.Key, &rec.DuplicateOf, &fingerprint, &result, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, filegate.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	rec.Status = filegate.Status(status)
	if result != "" && result != "null" {
		rec.Result = &filevalidator.ValidationResult{}
		if err := json.Unmarshal([]byte(result), rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &rec, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.dialect != Postgres {
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

var _ filegate.RecordStore = (*SQLStore)(nil)
