package repositories

import (
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(user *models.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to create user")
	}
	return nil
}

// GetUserByTelegramID retrieves a user by Telegram ID
func (r *UserRepository) GetUserByTelegramID(telegramID int64) (*models.User, error) {
	var user models.User
	result := r.db.Where("telegram_id = ?", telegramID).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	result := r.db.First(&user, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get user")
	}

	return &user, nil
}

// UpdateUserStatus updates user status. Single-column update, hooks skipped.
func (r *UserRepository) UpdateUserStatus(userID uint, status string) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("status", status)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update status")
	}
	return nil
}

// UpdateLastActivity updates user's last activity timestamp
func (r *UserRepository) UpdateLastActivity(userID uint) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).UpdateColumn("last_activity", gorm.Expr("CURRENT_TIMESTAMP"))
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update last activity")
	}
	return nil
}

// IsBlocked reports whether a block relation exists between the two users in
// either direction.
func (r *UserRepository) IsBlocked(a, b uint) (bool, error) {
	var count int64
	result := r.db.Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to check block relation")
	}
	return count > 0, nil
}

// GetBlockedUserIDs returns every user the given user has blocked or has been
// blocked by. Fed to the matchmaking claim as its exclusion list.
func (r *UserRepository) GetBlockedUserIDs(userID uint) ([]uint, error) {
	var blocks []models.UserBlock
	result := r.db.Where("blocker_id = ? OR blocked_id = ?", userID, userID).Find(&blocks)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get block relations")
	}

	ids := make([]uint, 0, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			ids = append(ids, b.BlockedID)
		} else {
			ids = append(ids, b.BlockerID)
		}
	}
	return ids, nil
}

// BlockUser records a block relation; duplicate blocks are ignored.
func (r *UserRepository) BlockUser(blockerID, blockedID uint) error {
	block := &models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	result := r.db.Where(block).FirstOrCreate(block)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to block user")
	}
	return nil
}
