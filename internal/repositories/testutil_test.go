package repositories

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One shared in-memory database; a single connection keeps concurrent
	// test transactions from opening a second empty one.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.UserBlock{},
		&models.CoinTransaction{},
		&models.ChatSession{},
		&models.ChatMessage{},
	))

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, telegramID int64, gender string, balance int64) *models.User {
	t.Helper()

	user := &models.User{
		TelegramID:  telegramID,
		Gender:      gender,
		CoinBalance: balance,
		Status:      models.UserStatusOnline,
	}
	require.NoError(t, db.Create(user).Error)

	// The column default kicks in for a zero balance on insert; force it back.
	if balance == 0 {
		require.NoError(t, db.Model(user).Update("coin_balance", 0).Error)
		user.CoinBalance = 0
	}

	return user
}
