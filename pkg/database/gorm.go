package database

import (
	"fmt"
	"time"

	"school_messaging_service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// NewGormPostgres opens a gorm handle on postgres, retrying like NewDatabaseConnection
func NewGormPostgres(d Connection) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < d.attempts(); i++ {
		db, err = gorm.Open(postgres.Open(d.ConnectStr), gormConfig())
		if err == nil {
			return db, nil
		}
		logger.Log.Warn(
			"Failed to open gorm postgres, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval * time.Second)
	}
	return nil, err
}

// NewGormSQLite opens a gorm handle on a sqlite file. The pool is pinned to
// one connection: sqlite serializes writers anyway and this keeps
// transactions from tripping over "database is locked".
func NewGormSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
		// 所有時間一律存 UTC
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}
