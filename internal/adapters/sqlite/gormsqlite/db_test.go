package gormsqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestBuildDSNIncludesPerConnectionPragmas(t *testing.T) {
	reader := buildDSN("./db.sqlite", true)
	writer := buildDSN("./db.sqlite", false)

	checks := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=trusted_schema(OFF)",
	}
	for _, c := range checks {
		if !strings.Contains(reader, c) {
			t.Fatalf("reader dsn missing %q: %s", c, reader)
		}
		if !strings.Contains(writer, c) {
			t.Fatalf("writer dsn missing %q: %s", c, writer)
		}
	}

	if !strings.Contains(reader, "_pragma=query_only(1)") {
		t.Fatalf("reader dsn missing query_only(1): %s", reader)
	}
	if !strings.Contains(writer, "_pragma=query_only(0)") {
		t.Fatalf("writer dsn missing query_only(0): %s", writer)
	}
}

func TestBuildDSNAppendsToExistingQuery(t *testing.T) {
	dsn := buildDSN("file:db.sqlite?cache=shared", false)
	if !strings.HasPrefix(dsn, "file:db.sqlite?cache=shared&_pragma=") {
		t.Fatalf("unexpected dsn: %s", dsn)
	}
}

func TestOpenReaderIsQueryOnly(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ro.sqlite"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := db.WriteTX(ctx, func(tx *Tx) error {
		return tx.Exec("CREATE TABLE probe (id INTEGER PRIMARY KEY)").Error
	}); err != nil {
		t.Fatalf("writer create table: %v", err)
	}

	err = db.ReadTX(ctx, func(tx *Tx) error {
		return tx.Exec("INSERT INTO probe (id) VALUES (1)").Error
	})
	if err == nil {
		t.Fatal("expected reader insert to fail")
	}

	var count int64
	if err := db.ReadTX(ctx, func(tx *Tx) error {
		return tx.Table("probe").Count(&count).Error
	}); err != nil {
		t.Fatalf("reader count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty probe table, got %d rows", count)
	}
}
