package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/cecbridge/internal/cec"
	"github.com/nerrad567/cecbridge/internal/infrastructure/database"
)

// openTestRepo creates a temporary SQLite-backed repository.
func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "registry.db")
	db, err := database.Open(database.Config{
		Path:        dbPath,
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	repo, err := NewSQLiteRepository(db.DB)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	return repo
}

func TestUpsertAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	rec := Record{
		Logical:  5,
		Physical: "3.0.0.0",
		OSDName:  "AVR",
		Vendor:   0x000C03,
		Power:    "on",
	}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByLogical(ctx, 5)
	if err != nil {
		t.Fatalf("GetByLogical() error = %v", err)
	}
	if got.Physical != "3.0.0.0" || got.OSDName != "AVR" || got.Vendor != 0x000C03 {
		t.Errorf("GetByLogical() = %+v, want stored fields", got)
	}
	if got.FirstSeen.IsZero() || got.LastSeen.IsZero() {
		t.Error("timestamps should be populated on insert")
	}
}

func TestUpsertOverwritesKeepsFirstSeen(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	if err := repo.Upsert(ctx, Record{
		Logical: 4, Physical: "1.0.0.0", OSDName: "Old",
		FirstSeen: first, LastSeen: first,
	}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.Upsert(ctx, Record{
		Logical: 4, Physical: "2.0.0.0", OSDName: "New", Power: "standby",
	}); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := repo.GetByLogical(ctx, 4)
	if err != nil {
		t.Fatalf("GetByLogical() error = %v", err)
	}
	if got.Physical != "2.0.0.0" || got.OSDName != "New" {
		t.Errorf("record not overwritten: %+v", got)
	}
	if !got.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want preserved %v", got.FirstSeen, first)
	}
	if !got.LastSeen.After(first) {
		t.Errorf("LastSeen = %v, want after %v", got.LastSeen, first)
	}
}

func TestGetByLogicalNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.GetByLogical(context.Background(), 9)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByLogical() error = %v, want ErrNotFound", err)
	}
}

func TestUpsertInvalidAddress(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Upsert(context.Background(), Record{Logical: 16})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Upsert() error = %v, want ErrInvalidAddress", err)
	}
	err = repo.Upsert(context.Background(), Record{Logical: -1})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Upsert() error = %v, want ErrInvalidAddress", err)
	}
}

func TestListOrderedByLogical(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, logical := range []int{8, 0, 5} {
		if err := repo.Upsert(ctx, Record{Logical: logical, Physical: "0.0.0.0"}); err != nil {
			t.Fatalf("Upsert(%d) error = %v", logical, err)
		}
	}

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(records))
	}
	for i, want := range []int{0, 5, 8} {
		if records[i].Logical != want {
			t.Errorf("records[%d].Logical = %d, want %d", i, records[i].Logical, want)
		}
	}
}

func TestPrune(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-48 * time.Hour)
	if err := repo.Upsert(ctx, Record{Logical: 1, Physical: "1.0.0.0", FirstSeen: stale, LastSeen: stale}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, Record{Logical: 2, Physical: "2.0.0.0"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	removed, err := repo.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune() removed = %d, want 1", removed)
	}

	if _, err := repo.GetByLogical(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("stale record should be pruned, got err = %v", err)
	}
	if _, err := repo.GetByLogical(ctx, 2); err != nil {
		t.Errorf("fresh record should survive prune, got err = %v", err)
	}
}

func TestRegistryDeviceSeen(t *testing.T) {
	repo := openTestRepo(t)
	registry := NewRegistry(repo, nil)

	registry.DeviceSeen(cec.DeviceInfo{
		Logical:  cec.AddressAudioSystem,
		Physical: 0x3000,
		OSDName:  "AVR",
		Vendor:   0x000C03,
		Power:    cec.PowerOn,
	})

	got, err := repo.GetByLogical(context.Background(), int(cec.AddressAudioSystem))
	if err != nil {
		t.Fatalf("GetByLogical() error = %v", err)
	}
	if got.Physical != "3.0.0.0" {
		t.Errorf("Physical = %q, want 3.0.0.0", got.Physical)
	}
	if got.OSDName != "AVR" {
		t.Errorf("OSDName = %q, want AVR", got.OSDName)
	}
	if got.Power != cec.PowerOn.String() {
		t.Errorf("Power = %q, want %q", got.Power, cec.PowerOn.String())
	}
}
