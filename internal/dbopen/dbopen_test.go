package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpen_Pragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "audits.db")
	db, err := Open(path, WithMkdirAll(), WithBusyTimeout(2500))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil || mode != "wal" {
		t.Fatalf("journal_mode: got %q, %v", mode, err)
	}
	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil || timeout != 2500 {
		t.Fatalf("busy_timeout: got %d, %v", timeout, err)
	}
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Fatalf("foreign_keys: got %d, %v", fk, err)
	}
}

func TestOpenMemory_Schema(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE runs (id TEXT PRIMARY KEY)`))
	if _, err := db.Exec(`INSERT INTO runs VALUES ('a')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestOpen_BadSchema(t *testing.T) {
	if _, err := Open(":memory:", WithSchema("CREATE TABLOID x")); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunTx_Rollback(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE runs (id TEXT PRIMARY KEY)`))
	boom := errors.New("boom")
	err := RunTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	var n int
	db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n)
	if n != 0 {
		t.Fatalf("rollback left %d rows", n)
	}
}

func TestIsBusy(t *testing.T) {
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) || IsBusy(nil) || IsBusy(errors.New("no such table")) {
		t.Fatal("IsBusy misclassified")
	}
}
