package persistence

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMigrations(t *testing.T) {
	m := &MigrationManager{db: nil, log: discardLogger()}

	migrations, err := m.loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("Expected at least one embedded migration")
	}
	if migrations[0].Version != 1 {
		t.Errorf("Expected first migration version 1, got %d", migrations[0].Version)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("Migrations not sorted: %d after %d", migrations[i].Version, migrations[i-1].Version)
		}
	}
}

func TestFindPendingMigrations(t *testing.T) {
	m := &MigrationManager{log: discardLogger()}
	available := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}

	pending := m.findPendingMigrations(available, []int{1, 2})
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("Expected only version 3 pending, got %v", pending)
	}

	pending = m.findPendingMigrations(available, nil)
	if len(pending) != 3 {
		t.Errorf("Expected all migrations pending, got %d", len(pending))
	}
}

func TestNullableHelpers(t *testing.T) {
	if nullableTime(time.Time{}) != nil {
		t.Error("Expected nil for zero time")
	}
	now := time.Now()
	if nullableTime(now) == nil {
		t.Error("Expected non-nil for set time")
	}
	if nullableString("") != nil {
		t.Error("Expected nil for empty string")
	}
	if nullableString("x") == nil {
		t.Error("Expected non-nil for set string")
	}
}
