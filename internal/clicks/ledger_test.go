package clicks

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"shoplink-platform/internal/model"
)

func setupLedger(t *testing.T) (*Ledger, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// One connection serializes sqlite writers; MySQL provides real
	// concurrency in production.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.Link{}, &model.DailyClick{}))

	t.Cleanup(func() { sqlDB.Close() })
	return NewLedger(db, zap.NewNop().Sugar()), db
}

func createLink(t *testing.T, db *gorm.DB) *model.Link {
	t.Helper()
	link := &model.Link{
		UserID:      1,
		Code:        "aB3xK9qZ",
		OriginalURL: "https://www.amazon.com/dp/B0CNCL35CH",
		ResolvedURL: "https://www.amazon.com/dp/B0CNCL35CH",
		FallbackURL: "https://www.amazon.com/dp/B0CNCL35CH",
		Platform:    "amazon",
		IsActive:    true,
	}
	require.NoError(t, db.Create(link).Error)
	return link
}

func TestRecordCreatesDailyRowOnFirstClick(t *testing.T) {
	ledger, db := setupLedger(t)
	link := createLink(t, db)

	require.NoError(t, ledger.Record(context.Background(), link.ID))

	var daily model.DailyClick
	require.NoError(t, db.Where("link_id = ?", link.ID).First(&daily).Error)
	assert.Equal(t, int64(1), daily.Clicks)
	assert.True(t, Today().Equal(daily.Date), "bucket date must be today's UTC midnight")

	var got model.Link
	require.NoError(t, db.First(&got, link.ID).Error)
	assert.Equal(t, int64(1), got.TotalClicks)
}

func TestRecordIncrementsExistingDailyRow(t *testing.T) {
	ledger, db := setupLedger(t)
	link := createLink(t, db)

	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Record(context.Background(), link.ID))
	}

	var daily model.DailyClick
	require.NoError(t, db.Where("link_id = ?", link.ID).First(&daily).Error)
	assert.Equal(t, int64(3), daily.Clicks)

	var count int64
	db.Model(&model.DailyClick{}).Where("link_id = ?", link.ID).Count(&count)
	assert.Equal(t, int64(1), count, "one row per link and day")
}

func TestRecordConcurrentClicksLoseNoIncrements(t *testing.T) {
	ledger, db := setupLedger(t)
	link := createLink(t, db)

	const writers = 8
	const clicksEach = 5

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < clicksEach; j++ {
				assert.NoError(t, ledger.Record(context.Background(), link.ID))
			}
		}()
	}
	wg.Wait()

	var got model.Link
	require.NoError(t, db.First(&got, link.ID).Error)
	assert.Equal(t, int64(writers*clicksEach), got.TotalClicks)

	var dailySum int64
	db.Model(&model.DailyClick{}).Where("link_id = ?", link.ID).
		Select("COALESCE(SUM(clicks), 0)").Scan(&dailySum)
	assert.Equal(t, got.TotalClicks, dailySum, "running total must equal the sum of daily buckets")
}
