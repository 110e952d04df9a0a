package migrations

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type blockedAssetRow struct {
	ID        uint
	Symbol    string
	ExpiresAt time.Time
}

// normalizeBlockedAssetSymbols upper-cases and trims every blocked symbol.
// When two rows collapse onto the same symbol the one that expires last wins.
func normalizeBlockedAssetSymbols(tx *gorm.DB) error {
	if !tx.Migrator().HasTable("blocked_assets") {
		return nil
	}

	var rows []blockedAssetRow
	if err := tx.Table("blocked_assets").
		Select("id", "symbol", "expires_at").
		Order("expires_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("load blocked assets: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		normalized := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if seen[normalized] {
			if err := tx.Exec(`DELETE FROM blocked_assets WHERE id = ?`, row.ID).Error; err != nil {
				return fmt.Errorf("delete duplicate blocked asset %d: %w", row.ID, err)
			}
			continue
		}
		seen[normalized] = true

		if normalized == row.Symbol {
			continue
		}
		if err := tx.Exec(`UPDATE blocked_assets SET symbol = ? WHERE id = ?`, normalized, row.ID).Error; err != nil {
			return fmt.Errorf("normalize blocked asset %d: %w", row.ID, err)
		}
	}

	return nil
}

// backfillOrderRecordStatus sets rows written without a status to "new".
func backfillOrderRecordStatus(tx *gorm.DB) error {
	if !tx.Migrator().HasTable("order_records") {
		return nil
	}

	return tx.Exec(`UPDATE order_records SET status = 'new' WHERE status IS NULL OR status = ''`).Error
}
