package database

import (
	"fmt"

	"portfolioexecutor/src/externalmodel"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReadOnlyDB is the read-only database connection used to read strategy signals.
// The database user for this connection should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB initializes the read-only database connection.
// It does not run any migrations and should only be used for reading data.
func InitReadOnlyDB() error {
	config := GetConfig()

	db, err := Open(config.Driver, config.DatabaseURLReadOnly, config.GormLogLevel, true)
	if err != nil {
		return err
	}

	if err := CheckSignalsReachable(db); err != nil {
		return err
	}

	ReadOnlyDB = db
	return nil
}

// CheckSignalsReachable pings db and makes sure the signals table can be read.
func CheckSignalsReachable(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&externalmodel.TradingSignal{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access %s: %w", externalmodel.TradingSignal{}.TableName(), err)
	}

	logrus.WithFields(logrus.Fields{"count": count}).Info("[ReadOnlyDB] strategy_signals reachable")
	return nil
}
