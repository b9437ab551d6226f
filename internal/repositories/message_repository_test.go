package repositories

import (
	"testing"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T) (*SessionRepository, *MessageRepository, *models.ChatSession, *models.User, *models.User) {
	t.Helper()
	db := newTestDB(t)
	sessionRepo := NewSessionRepository(db)
	messageRepo := NewMessageRepository(db)
	u1 := createTestUser(t, db, 111, models.GenderFemale, 100)
	u2 := createTestUser(t, db, 222, models.GenderMale, 100)

	session, err := sessionRepo.CreateSession(u1.ID, u2.ID, 0, 0)
	require.NoError(t, err)
	return sessionRepo, messageRepo, session, u1, u2
}

func record(t *testing.T, repo *MessageRepository, session *models.ChatSession, sender *models.User, side int, tgID1, tgID2 int) *models.ChatMessage {
	t.Helper()
	msg := &models.ChatMessage{
		ChatID:       session.ID,
		SenderID:     sender.ID,
		Type:         models.MessageTypeText,
		Text:         "hi",
		TgMessageID1: tgID1,
		TgMessageID2: tgID2,
	}
	require.NoError(t, repo.RecordMessage(msg, side))
	return msg
}

func TestRecordMessage_Counters(t *testing.T) {
	sessionRepo, messageRepo, session, u1, u2 := newTestChat(t)

	record(t, messageRepo, session, u1, 1, 10, 500)
	record(t, messageRepo, session, u1, 1, 11, 501)
	record(t, messageRepo, session, u2, 2, 502, 12)

	reloaded, err := sessionRepo.GetSessionByID(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.MessageCount)
	assert.Equal(t, 2, reloaded.MessageCount1)
	assert.Equal(t, 1, reloaded.MessageCount2)
}

func TestRecordMessage_EndedSession(t *testing.T) {
	sessionRepo, messageRepo, session, u1, _ := newTestChat(t)

	_, err := sessionRepo.EndSession(session.ID, u1.ID)
	require.NoError(t, err)

	msg := &models.ChatMessage{ChatID: session.ID, SenderID: u1.ID, Type: models.MessageTypeText, Text: "late"}
	err = messageRepo.RecordMessage(msg, 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionNotActive))

	// The insert rolled back with the counter update.
	messages, err := messageRepo.ListForChat(session.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestGetByTransportID(t *testing.T) {
	_, messageRepo, session, u1, _ := newTestChat(t)

	msg := record(t, messageRepo, session, u1, 1, 10, 500)

	// The same record resolves from either participant's id space.
	found, err := messageRepo.GetByTransportID(session.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, found.ID)

	found, err = messageRepo.GetByTransportID(session.ID, 2, 500)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, found.ID)

	// Ids do not leak across sides.
	_, err = messageRepo.GetByTransportID(session.ID, 2, 10)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestUpdateEdited(t *testing.T) {
	_, messageRepo, session, u1, _ := newTestChat(t)

	msg := record(t, messageRepo, session, u1, 1, 10, 500)
	require.NoError(t, messageRepo.UpdateEdited(msg.ID, "edited"))

	reloaded, err := messageRepo.GetByID(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", reloaded.Text)
	assert.True(t, reloaded.IsEdited)
}

func TestSoftDeleteFor(t *testing.T) {
	_, messageRepo, session, u1, u2 := newTestChat(t)

	record(t, messageRepo, session, u1, 1, 10, 500)
	record(t, messageRepo, session, u2, 2, 501, 11)

	count, err := messageRepo.SoftDeleteFor(session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// One side's deletion leaves the other side's view intact.
	side1, err := messageRepo.ListForChat(session.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, side1)

	side2, err := messageRepo.ListForChat(session.ID, 2)
	require.NoError(t, err)
	assert.Len(t, side2, 2)

	// Re-deleting finds nothing left to flag.
	count, err = messageRepo.SoftDeleteFor(session.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
