package prefs

import (
	"path/filepath"
	"testing"

	"github.com/ltg-uic/beaconsync/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	return log
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"), testLogger(t))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, ok := store.GetString(KeySectionName); ok {
		t.Fatalf("fresh store must be empty")
	}
}

func TestSetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	log := testLogger(t)

	store, err := Open(path, log)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	store.Set(KeySectionName, "6BM")
	store.Set(KeyGroupIndex, 2)
	store.Set(KeySpeciesNames, []string{"ant", "beetle"})

	reopened, err := Open(path, log)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if name, ok := reopened.GetString(KeySectionName); !ok || name != "6BM" {
		t.Fatalf("section name lost: %q %v", name, ok)
	}
	if index, ok := reopened.GetInt(KeyGroupIndex); !ok || index != 2 {
		t.Fatalf("group index lost: %d %v", index, ok)
	}
	names, ok := reopened.GetStrings(KeySpeciesNames)
	if !ok || len(names) != 2 || names[1] != "beetle" {
		t.Fatalf("species names lost: %v %v", names, ok)
	}
}

func TestLastWriteWins(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"), testLogger(t))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	store.Set(KeyActivity, "observe")
	store.Set(KeyActivity, "experiment")

	if activity, _ := store.GetString(KeyActivity); activity != "experiment" {
		t.Fatalf("expected last write to win, got %q", activity)
	}
}

func TestGetWrongTypeReturnsFalse(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "prefs.yaml"), testLogger(t))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	store.Set(KeyGroupIndex, "not a number")

	if _, ok := store.GetInt(KeyGroupIndex); ok {
		t.Fatalf("mismatched type must not coerce")
	}
}
