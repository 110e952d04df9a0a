package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName        string          `envconfig:"APP_NAME" default:"portfolio_executor"`
	StrategyConfigPath string          `envconfig:"STRATEGY_CONFIG_PATH" default:"config/strategies.yaml"`
	DryRun             bool            `envconfig:"DRY_RUN" default:"false"`
	BlockTTL           time.Duration   `envconfig:"BLOCK_TTL" default:"168h"`
	DeMinimis          decimal.Decimal `envconfig:"DE_MINIMIS" default:"1"`
	SkipNonTradingDays bool            `envconfig:"SKIP_NON_TRADING_DAYS" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
