package repositories

import (
	"time"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

// CreateSession creates an active chat session for the pairing. The
// one-active-session-per-user invariant is re-checked inside the insert
// transaction: the matchmaking layer checks it too, but the row insert is the
// write boundary and the durable session table is the source of truth for
// "is this user in a chat". costPaid1/costPaid2 record each side's gendered
// search debit for later refund evaluation.
func (r *SessionRepository) CreateSession(user1ID, user2ID uint, costPaid1, costPaid2 int64) (*models.ChatSession, error) {
	if user1ID == user2ID {
		return nil, errors.New(errors.ErrCodeValidation, "cannot pair a user with themselves")
	}

	session := &models.ChatSession{
		User1ID:   user1ID,
		User2ID:   user2ID,
		Status:    models.ChatStatusActive,
		CostPaid1: costPaid1,
		CostPaid2: costPaid2,
		StartedAt: time.Now(),
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var conflicts []models.ChatSession
		if err := tx.Where("status = ? AND (user1_id IN (?, ?) OR user2_id IN (?, ?))",
			models.ChatStatusActive, user1ID, user2ID, user1ID, user2ID).
			Find(&conflicts).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check active sessions")
		}

		for _, c := range conflicts {
			if c.SideOf(user1ID) != 0 {
				return errors.New(errors.ErrCodeConflictingSession, "user1 already has an active session")
			}
			return errors.New(errors.ErrCodeConflictingSession, "user2 already has an active session")
		}

		if err := tx.Create(session).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create chat session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetActiveSessionFor retrieves the user's active session, or nil.
func (r *SessionRepository) GetActiveSessionFor(userID uint) (*models.ChatSession, error) {
	var session models.ChatSession
	result := r.db.Where("(user1_id = ? OR user2_id = ?) AND status = ?",
		userID, userID, models.ChatStatusActive).
		First(&session)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get active session")
	}

	return &session, nil
}

// GetSessionByID retrieves a session by id.
func (r *SessionRepository) GetSessionByID(chatID uint) (*models.ChatSession, error) {
	var session models.ChatSession
	result := r.db.First(&session, chatID)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "chat session not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get chat session")
	}

	return &session, nil
}

// ToggleSafeMode sets the caller's safe-mode flag. Each participant owns
// their flag; effective protection is the OR of both, computed at send time.
func (r *SessionRepository) ToggleSafeMode(chatID, userID uint, enabled bool) error {
	session, err := r.GetSessionByID(chatID)
	if err != nil {
		return err
	}

	column := ""
	switch session.SideOf(userID) {
	case 1:
		column = "safe_mode_1"
	case 2:
		column = "safe_mode_2"
	default:
		return errors.New(errors.ErrCodeNotFound, "user is not a participant of this chat")
	}

	result := r.db.Model(&models.ChatSession{}).Where("id = ?", chatID).Update(column, enabled)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to toggle safe mode")
	}
	return nil
}

// EndSession marks the session ended and returns it with the final message
// counters for refund evaluation. The status guard in the UPDATE makes the
// transition race-free: only one caller can move active -> ended.
func (r *SessionRepository) EndSession(chatID, endedBy uint) (*models.ChatSession, error) {
	now := time.Now()
	result := r.db.Model(&models.ChatSession{}).
		Where("id = ? AND status = ?", chatID, models.ChatStatusActive).
		Updates(map[string]interface{}{
			"status":   models.ChatStatusEnded,
			"ended_at": now,
			"ended_by": endedBy,
		})

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to end session")
	}
	if result.RowsAffected == 0 {
		return nil, errors.New(errors.ErrCodeSessionNotActive, "chat session is not active")
	}

	return r.GetSessionByID(chatID)
}

// MarkRefunded flips the refund flag for one side so a refund is settled at
// most once per participant.
func (r *SessionRepository) MarkRefunded(chatID uint, side int) error {
	column := ""
	switch side {
	case 1:
		column = "refunded_1"
	case 2:
		column = "refunded_2"
	default:
		return errors.New(errors.ErrCodeValidation, "side must be 1 or 2")
	}

	result := r.db.Model(&models.ChatSession{}).
		Where("id = ? AND "+column+" = ?", chatID, false).
		Update(column, true)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to mark refund")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeAlreadyExists, "refund already settled for this side")
	}
	return nil
}
