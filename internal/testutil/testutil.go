package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ltg-uic/beaconsync/internal/db"
	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/repos"
	"github.com/ltg-uic/beaconsync/internal/types"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a fresh in-memory store, migrated and isolated per call.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return gdb
}

// Target bundles a fresh store and its repos the way services consume them.
func Target(tb testing.TB, role db.Role) repos.Target {
	tb.Helper()
	log := Logger(tb)
	gdb := DB(tb)
	return repos.Target{
		Store: db.NewStoreForTest(role, gdb, log),
		Repos: repos.NewSet(gdb, log),
	}
}

// SeedCatalog writes a small simulation catalog: one section ("6BM") with
// three groups, six species, two ecosystems, four habitats.
func SeedCatalog(tb testing.TB, t repos.Target) {
	tb.Helper()
	ctx := context.Background()

	species := make([]*types.Species, 0, 6)
	for i := 0; i < 6; i++ {
		species = append(species, &types.Species{
			Index: i,
			Name:  fmt.Sprintf("species-%d", i),
			Color: "#aabbcc",
		})
	}
	if err := t.Repos.Species.CreateAll(ctx, nil, species); err != nil {
		tb.Fatalf("failed to seed species: %v", err)
	}

	ecosystems := []*types.Ecosystem{
		{Index: 0, Name: "warm", Temperature: 30},
		{Index: 1, Name: "cool", Temperature: 18},
	}
	if err := t.Repos.Ecosystems.CreateAll(ctx, nil, ecosystems); err != nil {
		tb.Fatalf("failed to seed ecosystems: %v", err)
	}

	habitats := make([]*types.Habitat, 0, 4)
	for i := 0; i < 4; i++ {
		habitats = append(habitats, &types.Habitat{Index: i, Name: fmt.Sprintf("habitat-%d", i)})
	}
	if err := t.Repos.Habitats.CreateAll(ctx, nil, habitats); err != nil {
		tb.Fatalf("failed to seed habitats: %v", err)
	}

	section := &types.Section{Name: "6BM", Teacher: "teacher"}
	for i := 0; i < 3; i++ {
		section.Groups = append(section.Groups, &types.Group{
			SectionName: "6BM",
			Index:       i,
			Name:        fmt.Sprintf("group-%d", i),
		})
	}
	if err := t.Repos.Groups.CreateSection(ctx, nil, section); err != nil {
		tb.Fatalf("failed to seed section: %v", err)
	}
}

// SetRuntime points a store's runtime at a section, group, and species.
func SetRuntime(tb testing.TB, t repos.Target, sectionName string, groupIndex, speciesIndex int) {
	tb.Helper()
	rt := &types.Runtime{
		ID:                  types.RuntimeID,
		CurrentSectionName:  &sectionName,
		CurrentGroupIndex:   &groupIndex,
		CurrentSpeciesIndex: &speciesIndex,
	}
	if err := t.Repos.Runtime.Save(context.Background(), nil, rt); err != nil {
		tb.Fatalf("failed to set runtime: %v", err)
	}
}
