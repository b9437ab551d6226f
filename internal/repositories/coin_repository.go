package repositories

import (
	"fmt"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"gorm.io/gorm"
)

type CoinRepository struct {
	db *gorm.DB
}

func NewCoinRepository(db *gorm.DB) *CoinRepository {
	return &CoinRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *CoinRepository) WithTx(tx *gorm.DB) *CoinRepository {
	return &CoinRepository{db: tx}
}

// DeductCoins deducts coins from user's balance with transaction logging.
// The balance check and the decrement are one guarded UPDATE, so two
// concurrent deductions can never overdraw the account. UpdateColumn keeps
// the User model hooks out of a balance-only update.
func (r *CoinRepository) DeductCoins(userID uint, amount int64, txType, description string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ? AND coin_balance >= ?", userID, amount).
			UpdateColumn("coin_balance", gorm.Expr("coin_balance - ?", amount))
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}

		if result.RowsAffected == 0 {
			var user models.User
			if err := tx.First(&user, userID).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return errors.New(errors.ErrCodeNotFound, "user not found")
				}
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to get user")
			}
			return errors.New(errors.ErrCodeInsufficientFunds,
				fmt.Sprintf("insufficient coins: have %d, need %d", user.CoinBalance, amount))
		}

		transaction := &models.CoinTransaction{
			UserID:          userID,
			Amount:          -amount,
			TransactionType: txType,
			Description:     description,
		}
		if err := tx.Create(transaction).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		return nil
	})
}

// AddCoins adds coins to user's balance with transaction logging
func (r *CoinRepository) AddCoins(userID uint, amount int64, txType, description string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("coin_balance", gorm.Expr("coin_balance + ?", amount))
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update balance")
		}
		if result.RowsAffected == 0 {
			return errors.New(errors.ErrCodeNotFound, "user not found")
		}

		transaction := &models.CoinTransaction{
			UserID:          userID,
			Amount:          amount,
			TransactionType: txType,
			Description:     description,
		}
		if err := tx.Create(transaction).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create transaction")
		}

		return nil
	})
}

// GetBalance retrieves user's current coin balance
func (r *CoinRepository) GetBalance(userID uint) (int64, error) {
	var user models.User
	result := r.db.Select("coin_balance").First(&user, userID)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get balance")
	}

	return user.CoinBalance, nil
}

// HasSufficientBalance checks if user has enough coins
func (r *CoinRepository) HasSufficientBalance(userID uint, amount int64) (bool, error) {
	balance, err := r.GetBalance(userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// GetTransactionHistory retrieves user's transaction history
func (r *CoinRepository) GetTransactionHistory(userID uint, limit int) ([]models.CoinTransaction, error) {
	var transactions []models.CoinTransaction
	result := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&transactions)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get transaction history")
	}

	return transactions, nil
}
