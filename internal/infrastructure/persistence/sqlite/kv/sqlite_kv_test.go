package kv

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"lpbetl/internal/infrastructure/persistence/sqlite/model"
)

func setupKV(t *testing.T) *SQLiteKV {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "kv.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.ETLKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewSQLiteKV(db)
}

func TestSetAndGet(t *testing.T) {
	store := setupKV(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k1", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "k1", "v2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	value, found, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "v2" {
		t.Fatalf("Get() = %q, %v; want v2, true", value, found)
	}
}

func TestGetMissing(t *testing.T) {
	store := setupKV(t)

	_, found, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Fatalf("Get() found a missing key")
	}
}

func TestSetIfAbsent(t *testing.T) {
	store := setupKV(t)
	ctx := context.Background()

	won, err := store.SetIfAbsent(ctx, "lock", "owner-a")
	if err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if !won {
		t.Fatalf("SetIfAbsent() did not win on a fresh key")
	}

	won, err = store.SetIfAbsent(ctx, "lock", "owner-b")
	if err != nil {
		t.Fatalf("SetIfAbsent() second call error = %v", err)
	}
	if won {
		t.Fatalf("SetIfAbsent() won on an existing key")
	}

	value, found, err := store.Get(ctx, "lock")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "owner-a" {
		t.Fatalf("Get() = %q, %v; want the first owner", value, found)
	}
}

func TestDeleteReleasesKey(t *testing.T) {
	store := setupKV(t)
	ctx := context.Background()

	if _, err := store.SetIfAbsent(ctx, "lock", "owner-a"); err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if err := store.Delete(ctx, "lock"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	won, err := store.SetIfAbsent(ctx, "lock", "owner-b")
	if err != nil {
		t.Fatalf("SetIfAbsent() after delete error = %v", err)
	}
	if !won {
		t.Fatalf("SetIfAbsent() did not win after delete")
	}
}
