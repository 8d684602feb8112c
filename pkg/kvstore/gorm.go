package kvstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is the row layout of the kv_entries table.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:128"`
	Value     []byte
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

// Gorm stores values in a SQL table through gorm.
type Gorm struct {
	db *gorm.DB
}

// NewGorm opens a sqlite database at dsn and migrates the kv_entries table.
func NewGorm(dsn string) (*Gorm, error) {
	if dsn == "" {
		dsn = "citriflow.db"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errors.Wrap(err, "kvstore: open sqlite")
	}
	return NewGormWithDB(db)
}

// NewGormWithDB reuses an already opened connection.
func NewGormWithDB(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, errors.Wrap(err, "kvstore: migrate kv_entries")
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := g.db.WithContext(ctx).First(&e, "entry_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "kvstore: get %s", key)
	}
	return e.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key string, value []byte) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	return errors.Wrapf(err, "kvstore: set %s", key)
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	err := g.db.WithContext(ctx).Delete(&Entry{}, "entry_key = ?", key).Error
	return errors.Wrapf(err, "kvstore: delete %s", key)
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return errors.Wrap(err, "kvstore: close")
	}
	return sqlDB.Close()
}
