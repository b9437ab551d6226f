package repositories

import (
	"testing"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)

	session, err := repo.CreateSession(u1.ID, u2.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusActive, session.Status)
	assert.Equal(t, u1.ID, session.User1ID)
	assert.Equal(t, u2.ID, session.User2ID)
	assert.Equal(t, int64(1), session.CostPaid1)
	assert.Equal(t, int64(2), session.CostPaid2)
}

func TestCreateSession_SelfPair(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderMale, 100)

	_, err := repo.CreateSession(u1.ID, u1.ID, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestCreateSession_Conflict(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)
	u3 := createTestUser(t, db, 333, models.GenderMale, 100)

	_, err := repo.CreateSession(u1.ID, u2.ID, 0, 0)
	require.NoError(t, err)

	// Either side of the new pair being busy blocks the insert.
	_, err = repo.CreateSession(u1.ID, u3.ID, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflictingSession))

	_, err = repo.CreateSession(u3.ID, u2.ID, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConflictingSession))
}

func TestCreateSession_AllowedAfterEnd(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)
	u3 := createTestUser(t, db, 333, models.GenderMale, 100)

	first, err := repo.CreateSession(u1.ID, u2.ID, 0, 0)
	require.NoError(t, err)
	_, err = repo.EndSession(first.ID, u1.ID)
	require.NoError(t, err)

	_, err = repo.CreateSession(u1.ID, u3.ID, 0, 0)
	require.NoError(t, err)
}

func TestGetActiveSessionFor(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)

	session, err := repo.GetActiveSessionFor(u1.ID)
	require.NoError(t, err)
	assert.Nil(t, session)

	created, err := repo.CreateSession(u1.ID, u2.ID, 0, 0)
	require.NoError(t, err)

	for _, id := range []uint{u1.ID, u2.ID} {
		session, err = repo.GetActiveSessionFor(id)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, created.ID, session.ID)
	}
}

func TestEndSession(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)

	created, err := repo.CreateSession(u1.ID, u2.ID, 0, 0)
	require.NoError(t, err)

	ended, err := repo.EndSession(created.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatStatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	require.NotNil(t, ended.EndedBy)
	assert.Equal(t, u2.ID, *ended.EndedBy)

	// Only one caller can move active -> ended.
	_, err = repo.EndSession(created.ID, u1.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionNotActive))
}

func TestToggleSafeMode(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)
	outsider := createTestUser(t, db, 333, models.GenderMale, 100)

	created, err := repo.CreateSession(u1.ID, u2.ID, 0, 0)
	require.NoError(t, err)

	require.NoError(t, repo.ToggleSafeMode(created.ID, u2.ID, true))

	session, err := repo.GetSessionByID(created.ID)
	require.NoError(t, err)
	assert.False(t, session.SafeMode1)
	assert.True(t, session.SafeMode2)
	assert.True(t, session.Protected())

	require.NoError(t, repo.ToggleSafeMode(created.ID, u2.ID, false))
	session, err = repo.GetSessionByID(created.ID)
	require.NoError(t, err)
	assert.False(t, session.Protected())

	err = repo.ToggleSafeMode(created.ID, outsider.ID, true)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestMarkRefunded(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)

	created, err := repo.CreateSession(u1.ID, u2.ID, 2, 1)
	require.NoError(t, err)

	require.NoError(t, repo.MarkRefunded(created.ID, 1))

	// Second settlement of the same side loses the guard.
	err = repo.MarkRefunded(created.ID, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAlreadyExists))

	// The other side is independent.
	require.NoError(t, repo.MarkRefunded(created.ID, 2))

	err = repo.MarkRefunded(created.ID, 3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}
