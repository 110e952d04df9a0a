package executors

import (
	"portfolioexecutor/src/connectors"
	"portfolioexecutor/src/database"
)

// OpenMainDB connects and migrates the read/write database as a Setup step.
func OpenMainDB(setup *Setup) error {
	return setup.Step("main database", func() (func(), error) {
		if err := database.InitMainDB(); err != nil {
			return nil, err
		}
		return func() {
			_ = database.Close(database.MainDB)
			database.MainDB = nil
		}, nil
	})
}

// OpenReadOnlyDB connects the signal database as a Setup step.
func OpenReadOnlyDB(setup *Setup) error {
	return setup.Step("read-only database", func() (func(), error) {
		if err := database.InitReadOnlyDB(); err != nil {
			return nil, err
		}
		return func() {
			_ = database.Close(database.ReadOnlyDB)
			database.ReadOnlyDB = nil
		}, nil
	})
}

// BrokerConfig loads the broker settings with credentials decrypted.
func BrokerConfig() (connectors.Config, error) {
	return connectors.GetConfig().WithDecryptedCredentials()
}

// NewLiveBroker builds the REST client for the configured broker account.
func NewLiveBroker() (*connectors.BrokerClient, error) {
	cfg, err := BrokerConfig()
	if err != nil {
		return nil, err
	}
	return connectors.NewBrokerClient(cfg), nil
}
