package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/openradius/authstorm/internal/config"
	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/runlock"
)

func mockOpener(t *testing.T) (catalogOpener, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	open := func(_ context.Context, _ string, opts ...identity.CatalogOption) (*identity.Catalog, error) {
		return identity.NewCatalog(db, opts...), nil
	}
	return open, mock
}

func dbConfig(t *testing.T, scale int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DSN = "postgres://loadtest@localhost/radius"
	cfg.Scale.Count = scale
	cfg.LockFile = filepath.Join(t.TempDir(), "run.lock")
	return &cfg
}

func expectCount(mock sqlmock.Sqlmock, n int) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "RadiusUsers" WHERE "Id" > \$1`).
		WithArgs(int64(900000)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
}

func expectCleanup(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`DELETE FROM "RadiusUsers" WHERE "Id" > \$1`).
		WithArgs(int64(900000)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`ANALYZE "RadiusUsers"`).WillReturnResult(sqlmock.NewResult(0, 0))
}

func assertLockFree(t *testing.T, path string) {
	t.Helper()
	lock, err := runlock.Acquire(path)
	if err != nil {
		t.Fatalf("run lock still held after release: %v", err)
	}
	_ = lock.Release()
}

func TestPrepareIdentitiesCleansUpAfterCancel(t *testing.T) {
	open, mock := mockOpener(t)
	cfg := dbConfig(t, 2)

	expectCount(mock, 0)
	mock.ExpectExec(`INSERT INTO "RadiusUsers"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`ANALYZE "RadiusUsers"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "Username", "Password"`).
		WillReturnRows(sqlmock.NewRows([]string{"Username", "Password"}).
			AddRow("lt_1", "pw").
			AddRow("lt_2", "pw"))
	expectCleanup(mock)

	ctx, cancel := context.WithCancel(context.Background())
	ids, release, err := prepareIdentities(ctx, cfg, open, zap.NewNop())
	if err != nil {
		t.Fatalf("prepareIdentities() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("loaded %d identities, want 2", len(ids))
	}

	cancel()
	release()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cleanup did not run after cancel: %v", err)
	}
	assertLockFree(t, cfg.LockFile)
}

func TestPrepareIdentitiesCleansUpWhenInjectFails(t *testing.T) {
	open, mock := mockOpener(t)
	cfg := dbConfig(t, 2)

	expectCount(mock, 0)
	mock.ExpectExec(`INSERT INTO "RadiusUsers"`).WillReturnError(errors.New("disk full"))
	expectCleanup(mock)

	_, release, err := prepareIdentities(context.Background(), cfg, open, zap.NewNop())
	if err == nil {
		t.Fatal("expected inject error")
	}
	release()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cleanup did not run after inject failure: %v", err)
	}
	assertLockFree(t, cfg.LockFile)
}

func TestPrepareIdentitiesCleansUpWhenLoadFails(t *testing.T) {
	open, mock := mockOpener(t)
	cfg := dbConfig(t, 0)

	expectCount(mock, 3)
	reset := errors.New("connection reset")
	mock.ExpectQuery(`SELECT "Username", "Password"`).WillReturnError(reset)
	expectCleanup(mock)

	_, _, err := prepareIdentities(context.Background(), cfg, open, zap.NewNop())
	if !errors.Is(err, reset) {
		t.Fatalf("prepareIdentities() error = %v, want %v", err, reset)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("cleanup did not run after load failure: %v", err)
	}
	assertLockFree(t, cfg.LockFile)
}

func TestPrepareIdentitiesKeepSkipsCleanup(t *testing.T) {
	open, mock := mockOpener(t)
	cfg := dbConfig(t, 0)
	cfg.Scale.Keep = true

	expectCount(mock, 0)
	mock.ExpectQuery(`SELECT "Username", "Password"`).
		WillReturnRows(sqlmock.NewRows([]string{"Username", "Password"}).AddRow("alice", "pw"))

	core, logs := observer.New(zapcore.WarnLevel)
	_, release, err := prepareIdentities(context.Background(), cfg, open, zap.New(core))
	if err != nil {
		t.Fatalf("prepareIdentities() error = %v", err)
	}
	release()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
	if n := logs.FilterMessage("synthetic identity cleanup failed").Len(); n != 0 {
		t.Fatalf("cleanup ran with keep set")
	}
	assertLockFree(t, cfg.LockFile)
}

func TestPrepareIdentitiesRefusesHeldLock(t *testing.T) {
	open, mock := mockOpener(t)
	cfg := dbConfig(t, 0)

	held, err := runlock.Acquire(cfg.LockFile)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer func() { _ = held.Release() }()

	_, release, err := prepareIdentities(context.Background(), cfg, open, zap.NewNop())
	if !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("prepareIdentities() error = %v, want %v", err, runlock.ErrLocked)
	}
	release()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("catalog touched while locked: %v", err)
	}
}
