package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"daybot/internal/store"
	"daybot/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	models := []interface{}{
		&model.PositionModel{},
		&model.LedgerModel{},
		&model.ProposalModel{},
		&model.DecisionModel{},
		&model.OrderModel{},
		&model.SnapshotModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormUnitOfWork{tx: tx}, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormUnitOfWork struct {
	tx   *gorm.DB
	done bool
}

func (u *gormUnitOfWork) Positions() store.PositionRepository { return &positionRepo{db: u.tx} }
func (u *gormUnitOfWork) Ledgers() store.LedgerRepository     { return &ledgerRepo{db: u.tx} }
func (u *gormUnitOfWork) Proposals() store.ProposalRepository { return &proposalRepo{db: u.tx} }
func (u *gormUnitOfWork) Decisions() store.DecisionRepository { return &decisionRepo{db: u.tx} }
func (u *gormUnitOfWork) Orders() store.OrderRepository       { return &orderRepo{db: u.tx} }
func (u *gormUnitOfWork) Snapshots() store.SnapshotRepository { return &snapshotRepo{db: u.tx} }

func (u *gormUnitOfWork) Commit() error {
	u.done = true
	return u.tx.Commit().Error
}

// Rollback is a no-op after Commit so it can always be deferred.
func (u *gormUnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback().Error
}
