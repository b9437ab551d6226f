package repositories

import (
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// RecordMessage inserts the relayed message and bumps the session's total and
// sender-side counters in the same transaction. Refund eligibility is decided
// from these counters, so the insert and the increments must never be
// observed apart. Fails with SESSION_NOT_ACTIVE when the session has ended.
func (r *MessageRepository) RecordMessage(message *models.ChatMessage, senderSide int) error {
	counterColumn := "message_count_1"
	if senderSide == 2 {
		counterColumn = "message_count_2"
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ChatSession{}).
			Where("id = ? AND status = ?", message.ChatID, models.ChatStatusActive).
			Updates(map[string]interface{}{
				"message_count": gorm.Expr("message_count + 1"),
				counterColumn:   gorm.Expr(counterColumn + " + 1"),
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update message counters")
		}
		if result.RowsAffected == 0 {
			return errors.New(errors.ErrCodeSessionNotActive, "chat session is not active")
		}

		if err := tx.Create(message).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record message")
		}
		return nil
	})
}

// GetByTransportID resolves a message by the Telegram message id it carries
// on the given participant's side. Serves reply threading, edits and
// reactions across the two independent id spaces.
func (r *MessageRepository) GetByTransportID(chatID uint, side int, tgMessageID int) (*models.ChatMessage, error) {
	column := "tg_message_id_1"
	if side == 2 {
		column = "tg_message_id_2"
	}

	var message models.ChatMessage
	result := r.db.Where("chat_id = ? AND "+column+" = ?", chatID, tgMessageID).First(&message)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "message not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get message")
	}

	return &message, nil
}

// GetByID retrieves a message by primary key.
func (r *MessageRepository) GetByID(id uint) (*models.ChatMessage, error) {
	var message models.ChatMessage
	result := r.db.First(&message, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "message not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get message")
	}

	return &message, nil
}

// UpdateEdited replaces the stored text/caption after a relayed edit.
func (r *MessageRepository) UpdateEdited(id uint, newText string) error {
	result := r.db.Model(&models.ChatMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"text":      newText,
			"is_edited": true,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update edited message")
	}
	return nil
}

// SoftDeleteFor marks every message in the chat deleted for one participant
// and returns the number of rows affected. The other participant's flags and
// the session itself are untouched; the rows stay for moderation and audit.
func (r *MessageRepository) SoftDeleteFor(chatID uint, side int) (int64, error) {
	column := "deleted_for_user1"
	if side == 2 {
		column = "deleted_for_user2"
	}

	result := r.db.Model(&models.ChatMessage{}).
		Where("chat_id = ? AND "+column+" = ?", chatID, false).
		Update(column, true)
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to soft delete messages")
	}
	return result.RowsAffected, nil
}

// ListForChat returns the chat's messages, oldest first, excluding those the
// given side has deleted.
func (r *MessageRepository) ListForChat(chatID uint, side int) ([]models.ChatMessage, error) {
	column := "deleted_for_user1"
	if side == 2 {
		column = "deleted_for_user2"
	}

	var messages []models.ChatMessage
	result := r.db.Where("chat_id = ? AND "+column+" = ?", chatID, false).
		Order("created_at ASC").
		Find(&messages)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list messages")
	}
	return messages, nil
}
