package db

import (
	"log/slog"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/helpdesk/internal/models"
)

// New creates a new GORM database connection using the provided DSN.
func New(dsn string, log *slog.Logger) (*gorm.DB, error) {
	return Open(postgres.Open(dsn), log)
}

// Open connects through any dialector. Driver errors are translated so unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)

	if log != nil {
		log.Info("connected to database", "dialect", dialector.Name())
	}
	return db, nil
}

// Migrate creates or updates every table, including the unique index on
// tickets.display_id that backs allocation conflict detection.
func Migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(models.All()...), "auto migrate")
}
