package services

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mroshb/anonchat_bot/internal/config"
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/internal/repositories"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.Init()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
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

	if balance == 0 {
		require.NoError(t, db.Model(user).Update("coin_balance", 0).Error)
		user.CoinBalance = 0
	}

	return user
}

func testConfig() *config.Config {
	return &config.Config{
		SearchCostFemale:       2,
		SearchCostMale:         1,
		RefundMessageThreshold: 30,
		QueueTTLMinutes:        30,
		DefaultCoins:           100,
	}
}

// fakeQueue is an in-memory WaitingQueue with the same claim semantics as the
// Redis pool: oldest compatible entry wins, claim and removal are one step.
type fakeQueue struct {
	mu      sync.Mutex
	entries []*models.WaitingEntry
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{}
}

func (q *fakeQueue) Enqueue(_ context.Context, entry *models.WaitingEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.UserID == entry.UserID {
			return errors.New(errors.ErrCodeAlreadyQueued, "user already in matchmaking queue")
		}
	}
	copied := *entry
	q.entries = append(q.entries, &copied)
	return nil
}

func (q *fakeQueue) Dequeue(_ context.Context, userID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *fakeQueue) IsQueued(_ context.Context, userID uint) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueue) Claim(_ context.Context, requesterID uint, gender, intent string, excluded []uint) (*models.WaitingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	skip := map[uint]bool{requesterID: true}
	for _, id := range excluded {
		skip[id] = true
	}

	sort.SliceStable(q.entries, func(i, j int) bool {
		return q.entries[i].JoinedAt.Before(q.entries[j].JoinedAt)
	})

	for i, e := range q.entries {
		if skip[e.UserID] {
			continue
		}
		if !repositories.IsCompatible(gender, intent, e.Gender, e.Intent) {
			continue
		}
		claimed := *e
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		return &claimed, nil
	}
	return nil, nil
}

func (q *fakeQueue) Requeue(_ context.Context, entry *models.WaitingEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *entry
	q.entries = append(q.entries, &copied)
	return nil
}

type matchEnv struct {
	db          *gorm.DB
	cfg         *config.Config
	queue       *fakeQueue
	userRepo    *repositories.UserRepository
	coinRepo    *repositories.CoinRepository
	sessionRepo *repositories.SessionRepository
	messageRepo *repositories.MessageRepository
	economy     *EconomyService
	match       *MatchService
}

func newMatchEnv(t *testing.T) *matchEnv {
	t.Helper()

	db := newTestDB(t)
	cfg := testConfig()
	queue := newFakeQueue()

	userRepo := repositories.NewUserRepository(db)
	coinRepo := repositories.NewCoinRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	messageRepo := repositories.NewMessageRepository(db)

	economy := NewEconomyService(cfg, db, coinRepo, sessionRepo)
	match := NewMatchService(queue, sessionRepo, userRepo, economy)

	return &matchEnv{
		db:          db,
		cfg:         cfg,
		queue:       queue,
		userRepo:    userRepo,
		coinRepo:    coinRepo,
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		economy:     economy,
		match:       match,
	}
}
