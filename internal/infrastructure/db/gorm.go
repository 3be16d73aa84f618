package db

import (
	"fmt"
	"time"

	"vault-approval-service/internal/domain/trustedparty"
	"vault-approval-service/internal/domain/withdrawal"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenGorm(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := OpenGormWithDialector(mysql.Open(dsn), gormLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info("gorm: connected")
	return db, nil
}

// OpenGormWithDialector opens and pings a pooled connection. A nil logger
// silences gorm.
func OpenGormWithDialector(dial gorm.Dialector, l ...logger.Interface) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	}
	if len(l) > 0 && l[0] != nil {
		cfg.Logger = l[0]
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the service tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&trustedparty.Party{},
		&withdrawal.Request{},
		&withdrawal.ApprovalSlot{},
	)
}

// gormLogger writes through zap.
func gormLogger(log *zap.Logger) logger.Interface {
	return logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLogLevel(log),
		IgnoreRecordNotFoundError: true,
	})
}

// SQL tracing is on only at debug level.
func gormLogLevel(log *zap.Logger) logger.LogLevel {
	if log.Core().Enabled(zap.DebugLevel) {
		return logger.Info
	}
	return logger.Warn
}
