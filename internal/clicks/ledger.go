// Package clicks persists click counts: one running total per link and one
// counter row per (link, UTC calendar day).
package clicks

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shoplink-platform/internal/model"
)

// Ledger records clicks atomically.
type Ledger struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewLedger builds a click ledger on the given store.
func NewLedger(db *gorm.DB, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{db: db, logger: logger.Named("clicks")}
}

// Today returns the current UTC calendar day bucket.
func Today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// Record counts one click: the per-day counter is upserted and the link's
// running total incremented inside a single transaction. Both increments run
// as SQL expressions, so concurrent clicks on the same link and day never
// lose updates. Callers must not invoke this for missing or inactive links.
func (l *Ledger) Record(ctx context.Context, linkID uint) error {
	day := Today()

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		daily := model.DailyClick{LinkID: linkID, Date: day, Clicks: 1}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "link_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"clicks": gorm.Expr("clicks + 1")}),
		}).Create(&daily).Error; err != nil {
			return err
		}

		return tx.Model(&model.Link{}).
			Where("id = ?", linkID).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + 1")).Error
	})
	if err != nil {
		l.logger.Errorw("failed to record click", "link_id", linkID, "error", err)
	}
	return err
}
