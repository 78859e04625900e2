package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leaftrace/anomalyd/internal/logging"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	logging.Infof("Database connection established")
	return nil
}

// AutoMigrate runs database migrations. Source tables belong to the wider
// platform and are only created when includeSourceTables is set.
func AutoMigrate(includeSourceTables bool) error {
	return Migrate(DB, includeSourceTables)
}

// Migrate runs migrations against the given handle
func Migrate(db *gorm.DB, includeSourceTables bool) error {
	logging.Infof("Running database migrations...")

	err := db.AutoMigrate(
		&Anomaly{},
		&ResolutionHistoryEntry{},
		&DetectionSettings{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if includeSourceTables {
		if err := db.AutoMigrate(SourceModels()...); err != nil {
			return fmt.Errorf("failed to migrate source tables: %w", err)
		}
		logging.Infof("Source tables migrated")
	}

	logging.Infof("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults() error {
	logging.Infof("Initializing default database records...")

	if _, err := GetOrCreateDetectionSettings(DB); err != nil {
		return fmt.Errorf("failed to create default detection settings: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Ping checks that the database is reachable
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetOrCreateDetectionSettings retrieves or creates detection settings (singleton).
// Accepts a db parameter so callers can pass a transaction or test database.
func GetOrCreateDetectionSettings(db *gorm.DB) (*DetectionSettings, error) {
	var settings DetectionSettings
	result := db.First(&settings)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		settings = *NewDefaultDetectionSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateDetectionSettings saves detection settings
func UpdateDetectionSettings(db *gorm.DB, settings *DetectionSettings) error {
	return db.Save(settings).Error
}
