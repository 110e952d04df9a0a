package externalmodel

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradingSignal is a row written by the upstream signal pipeline.
// This service only reads it.
type TradingSignal struct {
	ID           uint            `gorm:"primaryKey;column:id" json:"id"`
	StrategyName string          `gorm:"column:strategy_name;index" json:"strategy_name"`
	Symbol       string          `gorm:"column:symbol" json:"symbol"`
	Score        decimal.Decimal `gorm:"column:score;type:numeric(20,8)" json:"score"`
	Source       string          `gorm:"column:source" json:"source"`
	Metadata     datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	GeneratedAt  time.Time       `gorm:"column:generated_at;index" json:"generated_at"`
}

// TableName Ensures that GORM uses the exact table name from the database.
func (TradingSignal) TableName() string {
	return "strategy_signals"
}
