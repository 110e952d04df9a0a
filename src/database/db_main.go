package database

import (
	"fmt"

	"portfolioexecutor/src/database/migrations"
	"portfolioexecutor/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MainDB is the primary read/write database connection used by the application.
// It holds the order audit log, the blocked asset registry and captured exceptions.
var MainDB *gorm.DB

// InitMainDB initializes the main (read/write) database connection and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config.Driver, config.DatabaseURLMain, config.GormLogLevel, false)
	if err != nil {
		return err
	}

	if err := Migrate(db); err != nil {
		return err
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")
	return nil
}

// Migrate runs schema and data migrations for every write-side model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.OrderRecord{},
		&model.BlockedAsset{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
