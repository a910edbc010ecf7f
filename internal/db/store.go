package db

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/types"
	"github.com/ltg-uic/beaconsync/internal/utils"
)

// Role names one of the two physical stores. They hold identical schemas but
// represent different device roles: the shared group tablet and the
// single-species kiosk terminal.
type Role string

const (
	RoleMain     Role = "main"
	RoleTerminal Role = "terminal"
)

// Store wraps one embedded database. The two stores are fully independent
// transactional domains and are never locked against each other.
type Store struct {
	role Role
	db   *gorm.DB
	log  *logger.Logger
}

func (s *Store) Role() Role   { return s.role }
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn inside a scoped write transaction. On error the
// transaction rolls back and prior state stays intact; partial writes are
// never observable.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

type StoreService struct {
	main     *Store
	terminal *Store
	log      *logger.Logger
}

func NewStoreService(log *logger.Logger) (*StoreService, error) {
	serviceLog := log.With("service", "StoreService")

	mainDSN := utils.GetEnv("MAIN_STORE_DSN", "file:beaconsync_main.db", log)
	terminalDSN := utils.GetEnv("TERMINAL_STORE_DSN", "file:beaconsync_terminal.db", log)

	main, err := open(RoleMain, mainDSN, serviceLog)
	if err != nil {
		return nil, fmt.Errorf("open main store: %w", err)
	}
	terminal, err := open(RoleTerminal, terminalDSN, serviceLog)
	if err != nil {
		return nil, fmt.Errorf("open terminal store: %w", err)
	}

	return &StoreService{main: main, terminal: terminal, log: serviceLog}, nil
}

func open(role Role, dsn string, log *logger.Logger) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// One writer at a time per store; the serialized dispatch queue depends
	// on this connection never being shared across concurrent writes.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	log.Info("Opened store", "role", role, "dsn", dsn)
	return &Store{role: role, db: gdb, log: log.With("store", string(role))}, nil
}

// NewStoreForTest wraps an already-open handle, letting tests build a Store
// around an in-memory database.
func NewStoreForTest(role Role, gdb *gorm.DB, log *logger.Logger) *Store {
	return &Store{role: role, db: gdb, log: log.With("store", string(role))}
}

func (s *StoreService) Main() *Store     { return s.main }
func (s *StoreService) Terminal() *Store { return s.terminal }

// ForRole returns the store a handler should write to given the current
// application mode's target role.
func (s *StoreService) ForRole(role Role) *Store {
	if role == RoleTerminal {
		return s.terminal
	}
	return s.main
}

// AutoMigrateAll creates the schema on both stores.
func (s *StoreService) AutoMigrateAll() error {
	s.log.Info("Auto migrating store tables...")
	for _, st := range []*Store{s.main, s.terminal} {
		if err := Migrate(st.db); err != nil {
			s.log.Error("Auto migration failed", "role", st.role, "error", err)
			return err
		}
	}
	return nil
}

// Migrate creates the schema on a single gorm handle. Exposed for tests.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.Species{},
		&types.Ecosystem{},
		&types.Habitat{},
		&types.Section{},
		&types.Member{},
		&types.Group{},
		&types.SpeciesObservation{},
		&types.Relationship{},
		&types.SpeciesPreference{},
		&types.Runtime{},
		&types.Channel{},
		&types.Experiment{},
	)
}
