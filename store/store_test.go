package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/filevalidator"
)

func record(id, fingerprint string, at time.Time) *filegate.Record {
	return &filegate.Record{
		UploadID:         id,
		Bucket:           "incoming",
		Key:              "2024/" + id + ".pdf",
		OriginalFilename: id + ".pdf",
		DocumentCategory: "invoice",
		Status:           filegate.StatusValidated,
		Location:         filegate.Location{Bucket: "validated", Key: "2024/" + id + ".pdf"},
		Result: &filevalidator.ValidationResult{
			IsValid:             true,
			Errors:              []string{},
			Warnings:            []string{"metadata stripped"},
			Fingerprint:         fingerprint,
			DetectedContentType: "application/pdf",
			Size:                1024,
		},
		CreatedAt: at,
	}
}

// stores runs fn against every RecordStore implementation that needs no
// external service
func stores(t *testing.T, fn func(t *testing.T, s filegate.RecordStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(context.Background(), SQLite, ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestSaveAndFindByFingerprint(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	stores(t, func(t *testing.T, s filegate.RecordStore) {
		ctx := context.Background()

		_, err := s.FindByFingerprint(ctx, "abc")
		assert.ErrorIs(t, err, filegate.ErrRecordNotFound)

		require.NoError(t, s.SaveRecord(ctx, record("second", "abc", base.Add(time.Minute))))
		require.NoError(t, s.SaveRecord(ctx, record("first", "abc", base)))
		require.NoError(t, s.SaveRecord(ctx, record("other", "def", base)))

		got, err := s.FindByFingerprint(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "first", got.UploadID)
		assert.Equal(t, filegate.StatusValidated, got.Status)
		assert.Equal(t, filegate.Location{Bucket: "validated", Key: "2024/first.pdf"}, got.Location)
		assert.True(t, base.Equal(got.CreatedAt), "CreatedAt = %v", got.CreatedAt)
		require.NotNil(t, got.Result)
		assert.Equal(t, "application/pdf", got.Result.DetectedContentType)
		assert.Equal(t, []string{"metadata stripped"}, got.Result.Warnings)

		_, err = s.FindByFingerprint(ctx, "")
		assert.ErrorIs(t, err, filegate.ErrRecordNotFound)
	})
}

func TestSaveRecordReplaces(t *testing.T) {
	stores(t, func(t *testing.T, s filegate.RecordStore) {
		ctx := context.Background()
		rec := record("u1", "abc", time.Now())
		require.NoError(t, s.SaveRecord(ctx, rec))

		rec.Status = filegate.StatusQuarantined
		rec.Result.Fingerprint = "xyz"
		require.NoError(t, s.SaveRecord(ctx, rec))

		_, err := s.FindByFingerprint(ctx, "abc")
		assert.ErrorIs(t, err, filegate.ErrRecordNotFound)

		got, err := s.FindByFingerprint(ctx, "xyz")
		require.NoError(t, err)
		assert.Equal(t, filegate.StatusQuarantined, got.Status)
	})
}

func TestSaveRecordWithoutResult(t *testing.T) {
	stores(t, func(t *testing.T, s filegate.RecordStore) {
		ctx := context.Background()
		rec := record("u1", "", time.Now())
		rec.Result = nil
		require.NoError(t, s.SaveRecord(ctx, rec))

		getter, ok := s.(interface {
			Get(context.Context, string) (*filegate.Record, error)
		})
		require.True(t, ok)
		got, err := getter.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, got.Result)

		_, err = getter.Get(ctx, "missing")
		assert.ErrorIs(t, err, filegate.ErrRecordNotFound)
	})
}

func TestConcurrentSaves(t *testing.T) {
	stores(t, func(t *testing.T, s filegate.RecordStore) {
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.SaveRecord(ctx, record(fmt.Sprintf("u%02d", i), "same", time.Unix(int64(100-i), 0)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := s.FindByFingerprint(ctx, "same")
		require.NoError(t, err)
		assert.Equal(t, "u19", got.UploadID)
	})
}

func TestMemoryIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := record("u1", "abc", time.Now())
	require.NoError(t, m.SaveRecord(ctx, rec))

	rec.Result.Errors = append(rec.Result.Errors, "mutated")
	got, _ := m.Get(ctx, "u1")
	assert.Empty(t, got.Result.Errors)
	assert.Equal(t, 1, m.Len())
}

func TestPostgresQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	s, err := NewSQLStore(db, Postgres)
	require.NoError(t, err)
	ctx := context.Background()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := record("u1", "abc", at)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_records")).
		WithArgs("u1", "incoming", "2024/u1.pdf", "u1.pdf", "invoice", "validated",
			"validated", "2024/u1.pdf", "", "abc", sqlmock.AnyArg(), "2024-06-01T12:00:00.000000000Z").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, s.SaveRecord(ctx, rec))

	cols := []string{"upload_id", "bucket", "object_key", "original_filename", "document_category", "status",
		"location_bucket", "location_key", "duplicate_of", "fingerprint", "result", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE fingerprint = $1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"u1", "incoming", "2024/u1.pdf", "u1.pdf", "invoice", "validated",
			"validated", "2024/u1.pdf", "", "abc", `{"isValid":true,"errors":[],"warnings":[],"fingerprint":"abc","size":1024,"duration":0}`,
			"2024-06-01T12:00:00.000000000Z"))

	got, err := s.FindByFingerprint(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UploadID)
	assert.Equal(t, int64(1024), got.Result.Size)
	assert.True(t, at.Equal(got.CreatedAt))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE fingerprint = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))
	_, err = s.FindByFingerprint(ctx, "nope")
	assert.ErrorIs(t, err, filegate.ErrRecordNotFound)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO upload_records")).
		WillReturnError(errors.New("connection reset"))
	err = s.SaveRecord(ctx, rec)
	assert.ErrorContains(t, err, "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: Postgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &SQLStore{dialect: SQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	_, err := NewSQLStore(nil, Dialect("oracle"))
	assert.Error(t, err)
}

func TestRegisteredStores(t *testing.T) {
	s, err := filegate.CreateStore(&filegate.Config{StoreDriver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = filegate.CreateStore(&filegate.Config{StoreDriver: "sqlite", StoreDSN: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	_ = s.(*SQLStore).Close()
}
