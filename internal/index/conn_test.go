package index

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConn_OpenMemory_SeedsRootPage(t *testing.T) {
	conn, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer conn.Disconnect()

	var count int
	err = conn.WithRead(context.Background(), func(db DBTX) error {
		return db.QueryRow(`SELECT COUNT(*) FROM pages WHERE id=?`, rootID).Scan(&count)
	})
	if err != nil {
		t.Fatalf("WithRead: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one root row after a fresh open, got %d", count)
	}
}

func TestConn_WriteIsRolledBackOnError(t *testing.T) {
	conn, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer conn.Disconnect()

	wantErr := errors.New("boom")
	err = conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO zim_index(key, value) VALUES ('marker', '1')`); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithWrite returned %v, want %v", err, wantErr)
	}

	var count int
	readErr := conn.WithRead(context.Background(), func(db DBTX) error {
		return db.QueryRow(`SELECT COUNT(*) FROM zim_index WHERE key='marker'`).Scan(&count)
	})
	if readErr != nil {
		t.Fatalf("WithRead: %v", readErr)
	}
	if count != 0 {
		t.Error("a rolled-back write must not leave its changes visible")
	}
}

func TestConn_WithWrite_ReentrantCallReusesTheOuterTransaction(t *testing.T) {
	conn, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer conn.Disconnect()

	err = conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO zim_index(key, value) VALUES ('outer', '1')`); err != nil {
			return err
		}
		// A nested WithWrite must not deadlock on writeMu and must see
		// the outer transaction's uncommitted write.
		return conn.WithWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
			var value string
			if err := tx.QueryRow(`SELECT value FROM zim_index WHERE key='outer'`).Scan(&value); err != nil {
				return err
			}
			if value != "1" {
				t.Errorf("nested WithWrite saw value %q, want \"1\"", value)
			}
			_, err := tx.Exec(`INSERT INTO zim_index(key, value) VALUES ('inner', '1')`)
			return err
		})
	})
	if err != nil {
		t.Fatalf("WithWrite: %v", err)
	}

	for _, key := range []string{"outer", "inner"} {
		var value string
		err := conn.WithRead(context.Background(), func(db DBTX) error {
			return db.QueryRow(`SELECT value FROM zim_index WHERE key=?`, key).Scan(&value)
		})
		if err != nil {
			t.Fatalf("reading %q after commit: %v", key, err)
		}
		if value != "1" {
			t.Errorf("%q = %q, want \"1\"", key, value)
		}
	}
}

func TestOpenFile_RecreatesSchemaOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	conn, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := conn.WithWrite(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO zim_index(key, value) VALUES ('db_version', 'stale')`)
		return err
	}); err != nil {
		t.Fatalf("forcing a stale version: %v", err)
	}
	conn.Disconnect()

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen after stale version: %v", err)
	}
	defer reopened.Disconnect()

	var version string
	err = reopened.WithRead(context.Background(), func(db DBTX) error {
		return db.QueryRow(`SELECT value FROM zim_index WHERE key='db_version'`).Scan(&version)
	})
	if err != nil {
		t.Fatalf("reading db_version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("db_version = %q after reopen, want %q (should have rebuilt)", version, SchemaVersion)
	}
}

func TestOpenFile_RecoversFromAMalformedDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	if err := os.WriteFile(path, []byte("not a sqlite database"), 0644); err != nil {
		t.Fatalf("seeding a corrupt file: %v", err)
	}

	conn, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile should recover from corruption, got: %v", err)
	}
	defer conn.Disconnect()

	var count int
	err = conn.WithRead(context.Background(), func(db DBTX) error {
		return db.QueryRow(`SELECT COUNT(*) FROM pages WHERE id=?`, rootID).Scan(&count)
	})
	if err != nil {
		t.Fatalf("reading rebuilt database: %v", err)
	}
	if count != 1 {
		t.Errorf("expected a fresh root row after corruption recovery, got count=%d", count)
	}
}
