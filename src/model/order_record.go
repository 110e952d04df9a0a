// model/order_record.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord statuses mirror the broker order lifecycle. The record starts
// with whatever status the broker acknowledged and moves forward as fills arrive.
const (
	OrderRecordStatusNew             = "new"
	OrderRecordStatusAccepted        = "accepted"
	OrderRecordStatusPartiallyFilled = "partially_filled"
	OrderRecordStatusFilled          = "filled"
	OrderRecordStatusCanceled        = "canceled"
	OrderRecordStatusExpired         = "expired"
	OrderRecordStatusRejected        = "rejected"
)

// OrderRecord is the local audit row written after every broker acknowledgment.
// Rows are append-only: only Status, FilledAt and FilledPrice change afterwards,
// and nothing ever deletes them.
type OrderRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RunID         string `gorm:"size:64;index" json:"run_id"`
	BrokerOrderID string `gorm:"size:128;not null;uniqueIndex" json:"broker_order_id"`
	ClientOrderID string `gorm:"size:128;index" json:"client_order_id"`

	Symbol string `gorm:"size:32;not null;index" json:"symbol"`
	Side   string `gorm:"size:10;not null" json:"side"` // buy | sell
	Kind   string `gorm:"size:20" json:"kind"`          // close | reduce | increase | open

	// Exactly one of Notional / Qty is set by the engine: closes are sized by
	// quantity, adjustments by notional.
	Notional decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"notional"`
	Qty      decimal.NullDecimal `gorm:"type:numeric(24,9)" json:"qty"`

	Status      string              `gorm:"size:30;not null" json:"status"`
	SubmittedAt time.Time           `gorm:"not null;index" json:"submitted_at"`
	FilledAt    *time.Time          `json:"filled_at,omitempty"`
	FilledPrice decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"filled_price"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for order records.
func (OrderRecord) TableName() string {
	return "order_records"
}

// TerminalOrderStatuses are the statuses the broker will not change anymore.
var TerminalOrderStatuses = []string{
	OrderRecordStatusFilled,
	OrderRecordStatusCanceled,
	OrderRecordStatusExpired,
	OrderRecordStatusRejected,
}

// IsTerminalOrderStatus reports whether the broker will not change the order anymore.
func IsTerminalOrderStatus(status string) bool {
	for _, s := range TerminalOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}
