package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database", "food_waste.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected db file at %s: %v", path, err)
	}
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "food_waste.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO providers (Provider_ID, Name, Type, City) VALUES (1, 'A', 'Restaurant', 'City X')`); err != nil {
		t.Fatalf("insert provider: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := EnsureSchema(db); err != nil {
			t.Fatalf("ensure schema run %d: %v", i+1, err)
		}
	}
	db.Close()

	// Reopening runs the schema step again.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM providers`).Scan(&count); err != nil {
		t.Fatalf("count providers: %v", err)
	}
	if count != 1 {
		t.Errorf("providers = %d, want 1", count)
	}
}

func TestSchemaHasAllTables(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for table := range tableColumns {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO food_listings (Food_ID, Food_Name, Quantity, Provider_ID) VALUES (1, 'Rice', 10, 99)`)
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
	if !errors.Is(Classify(err), ErrSchemaViolation) {
		t.Errorf("classified error = %v, want ErrSchemaViolation", Classify(err))
	}
}

func TestNotNullViolationClassified(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO providers (Provider_ID, Name, Type) VALUES (1, 'A', 'Restaurant')`)
	if !errors.Is(Classify(err), ErrSchemaViolation) {
		t.Errorf("classified error = %v, want ErrSchemaViolation", Classify(err))
	}
}

func TestNegativeQuantityRejected(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO food_listings (Food_ID, Food_Name, Quantity) VALUES (1, 'Rice', -1)`)
	if !errors.Is(Classify(err), ErrSchemaViolation) {
		t.Errorf("classified error = %v, want ErrSchemaViolation", Classify(err))
	}
}

func TestOpenUnwritableLocation(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	_, err := Open(filepath.Join(blocker, "sub", "food_waste.db"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestClassifyPassesThroughTaggedErrors(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
	plain := errors.New("boom")
	if got := Classify(plain); got != plain {
		t.Errorf("Classify(plain) = %v, want unchanged", got)
	}
	if got := Classify(ErrNotFound); !errors.Is(got, ErrNotFound) {
		t.Errorf("Classify(ErrNotFound) = %v", got)
	}
}

func TestTableColumns(t *testing.T) {
	cols, ok := TableColumns("claims")
	if !ok {
		t.Fatal("claims should be a known table")
	}
	want := []string{"Claim_ID", "Food_ID", "Receiver_ID", "Status", "Timestamp"}
	if len(cols) != len(want) {
		t.Fatalf("len = %d, want %d", len(cols), len(want))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("cols[%d] = %q, want %q", i, cols[i], want[i])
		}
	}

	cols[0] = "mutated"
	again, _ := TableColumns("claims")
	if again[0] != "Claim_ID" {
		t.Error("TableColumns must return a copy")
	}

	if _, ok := TableColumns("users"); ok {
		t.Error("users should not be a known table")
	}
}
