package services

import (
	"testing"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinCost(t *testing.T) {
	env := newMatchEnv(t)

	assert.Equal(t, int64(0), env.economy.JoinCost(models.SearchIntentAny))
	assert.Equal(t, int64(1), env.economy.JoinCost(models.SearchIntentMale))
	assert.Equal(t, int64(2), env.economy.JoinCost(models.SearchIntentFemale))
}

func TestCheckBalance(t *testing.T) {
	env := newMatchEnv(t)
	user := createTestUser(t, env.db, 111, models.GenderMale, 1)

	// Open search needs nothing.
	require.NoError(t, env.economy.CheckBalance(user.ID, models.SearchIntentAny))

	require.NoError(t, env.economy.CheckBalance(user.ID, models.SearchIntentMale))
	require.Error(t, env.economy.CheckBalance(user.ID, models.SearchIntentFemale))
}

func TestSettleRefund_UnderThreshold(t *testing.T) {
	env := newMatchEnv(t)
	u1 := createTestUser(t, env.db, 111, models.GenderFemale, 4)
	u2 := createTestUser(t, env.db, 222, models.GenderMale, 3)

	session, err := env.sessionRepo.CreateSession(u1.ID, u2.ID, 1, 2)
	require.NoError(t, err)
	session.MessageCount = env.cfg.RefundMessageThreshold - 1

	refunded1, refunded2, err := env.economy.SettleRefund(session)
	require.NoError(t, err)
	assert.True(t, refunded1)
	assert.True(t, refunded2)

	balance, err := env.coinRepo.GetBalance(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	balance, err = env.coinRepo.GetBalance(u2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestSettleRefund_AtThreshold(t *testing.T) {
	env := newMatchEnv(t)
	u1 := createTestUser(t, env.db, 111, models.GenderFemale, 4)
	u2 := createTestUser(t, env.db, 222, models.GenderMale, 3)

	session, err := env.sessionRepo.CreateSession(u1.ID, u2.ID, 1, 2)
	require.NoError(t, err)
	session.MessageCount = env.cfg.RefundMessageThreshold

	// Reaching the threshold keeps both debits.
	refunded1, refunded2, err := env.economy.SettleRefund(session)
	require.NoError(t, err)
	assert.False(t, refunded1)
	assert.False(t, refunded2)

	balance, err := env.coinRepo.GetBalance(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
}

func TestSettleRefund_OnlyPaidSides(t *testing.T) {
	env := newMatchEnv(t)
	u1 := createTestUser(t, env.db, 111, models.GenderFemale, 10)
	u2 := createTestUser(t, env.db, 222, models.GenderMale, 10)

	// Only side 2 ran a targeted search.
	session, err := env.sessionRepo.CreateSession(u1.ID, u2.ID, 0, 2)
	require.NoError(t, err)

	refunded1, refunded2, err := env.economy.SettleRefund(session)
	require.NoError(t, err)
	assert.False(t, refunded1)
	assert.True(t, refunded2)

	balance, err := env.coinRepo.GetBalance(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	balance, err = env.coinRepo.GetBalance(u2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), balance)
}

func TestSettleRefund_CreditFailureKeepsFlagClear(t *testing.T) {
	env := newMatchEnv(t)
	u1 := createTestUser(t, env.db, 111, models.GenderFemale, 0)

	// Side 2 belongs to an account that does not exist yet, so the credit
	// fails. The refund flag must roll back with it or the coins are lost.
	const ghostID uint = 4242
	session := &models.ChatSession{
		User1ID:   u1.ID,
		User2ID:   ghostID,
		Status:    models.ChatStatusEnded,
		CostPaid2: 2,
	}
	require.NoError(t, env.db.Create(session).Error)

	_, _, err := env.economy.SettleRefund(session)
	require.Error(t, err)

	var stored models.ChatSession
	require.NoError(t, env.db.First(&stored, session.ID).Error)
	assert.False(t, stored.Refunded2)

	// Once the account exists a retry settles normally.
	ghost := &models.User{
		ID:         ghostID,
		TelegramID: 222,
		Gender:     models.GenderMale,
		Status:     models.UserStatusOnline,
	}
	require.NoError(t, env.db.Create(ghost).Error)

	refunded1, refunded2, err := env.economy.SettleRefund(&stored)
	require.NoError(t, err)
	assert.False(t, refunded1)
	assert.True(t, refunded2)

	balance, err := env.coinRepo.GetBalance(ghostID)
	require.NoError(t, err)
	assert.Equal(t, int64(102), balance)
}

func TestSettleRefund_Idempotent(t *testing.T) {
	env := newMatchEnv(t)
	u1 := createTestUser(t, env.db, 111, models.GenderFemale, 0)
	u2 := createTestUser(t, env.db, 222, models.GenderMale, 0)

	session, err := env.sessionRepo.CreateSession(u1.ID, u2.ID, 2, 1)
	require.NoError(t, err)

	_, _, err = env.economy.SettleRefund(session)
	require.NoError(t, err)

	// A second settlement of the same stale snapshot credits nothing: the
	// per-side flags in the database already flipped.
	_, _, err = env.economy.SettleRefund(session)
	require.NoError(t, err)

	balance, err := env.coinRepo.GetBalance(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance)

	balance, err = env.coinRepo.GetBalance(u2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}
