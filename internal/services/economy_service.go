package services

import (
	"fmt"

	"github.com/mroshb/anonchat_bot/internal/config"
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/internal/repositories"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
	"gorm.io/gorm"
)

// EconomyService settles the coin side effects of matchmaking: the gendered
// search cost charged when a pairing is confirmed, and the refund when a
// session ends under the reward threshold. Each gendered searcher is charged
// independently, so both sides of a pairing may pay.
type EconomyService struct {
	cfg         *config.Config
	db          *gorm.DB
	coinRepo    *repositories.CoinRepository
	sessionRepo *repositories.SessionRepository
}

func NewEconomyService(cfg *config.Config, db *gorm.DB, coinRepo *repositories.CoinRepository, sessionRepo *repositories.SessionRepository) *EconomyService {
	return &EconomyService{
		cfg:         cfg,
		db:          db,
		coinRepo:    coinRepo,
		sessionRepo: sessionRepo,
	}
}

// JoinCost returns the coin cost of searching with the given intent. An
// open search is free; the cost of a targeted search depends on the target
// gender.
func (s *EconomyService) JoinCost(intent string) int64 {
	switch intent {
	case models.SearchIntentFemale:
		return s.cfg.SearchCostFemale
	case models.SearchIntentMale:
		return s.cfg.SearchCostMale
	}
	return 0
}

// CheckBalance verifies the user can cover the join cost of the given
// intent. Called before any partner is claimed: a requester who cannot pay
// must never pull someone out of the pool.
func (s *EconomyService) CheckBalance(userID uint, intent string) error {
	cost := s.JoinCost(intent)
	if cost == 0 {
		return nil
	}

	hasFunds, err := s.coinRepo.HasSufficientBalance(userID, cost)
	if err != nil {
		return err
	}
	if !hasFunds {
		return errors.New(errors.ErrCodeInsufficientFunds,
			fmt.Sprintf("insufficient coins for targeted search: need %d", cost))
	}
	return nil
}

// DebitJoinCost charges the user for their search intent at pairing time and
// returns the amount debited. Free for open searches.
func (s *EconomyService) DebitJoinCost(userID uint, intent string) (int64, error) {
	cost := s.JoinCost(intent)
	if cost == 0 {
		return 0, nil
	}

	if err := s.coinRepo.DeductCoins(userID, cost, models.TxTypeMatchSearch, "هزینه جستجوی هدفمند"); err != nil {
		return 0, err
	}
	return cost, nil
}

// RefundJoinCost returns a previously debited join cost, used when a pairing
// is aborted after the debit.
func (s *EconomyService) RefundJoinCost(userID uint, amount int64) error {
	if amount == 0 {
		return nil
	}
	return s.coinRepo.AddCoins(userID, amount, models.TxTypeMatchRefund, "بازگشت هزینه جستجو (لغو جفت‌شدن)")
}

// SettleRefund evaluates both sides of an ended session against the reward
// threshold and credits back any gendered-search cost for a side that paid.
// Sides are settled independently; the per-side refund flags on the session
// make each settlement at most once.
func (s *EconomyService) SettleRefund(session *models.ChatSession) (refunded1, refunded2 bool, err error) {
	if session.MessageCount >= s.cfg.RefundMessageThreshold {
		return false, false, nil
	}

	if session.CostPaid1 > 0 && !session.Refunded1 {
		if err := s.refundSide(session, 1, session.User1ID, session.CostPaid1); err != nil {
			return false, false, err
		}
		refunded1 = true
	}

	if session.CostPaid2 > 0 && !session.Refunded2 {
		if err := s.refundSide(session, 2, session.User2ID, session.CostPaid2); err != nil {
			return refunded1, false, err
		}
		refunded2 = true
	}

	return refunded1, refunded2, nil
}

func (s *EconomyService) refundSide(session *models.ChatSession, side int, userID uint, amount int64) error {
	desc := fmt.Sprintf("بازگشت هزینه جستجو (چت کوتاه‌تر از %d پیام)", s.cfg.RefundMessageThreshold)

	// Flag flip and credit commit together. The flip is a guarded update;
	// losing the race means another settlement already credited this side.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.sessionRepo.WithTx(tx).MarkRefunded(session.ID, side); err != nil {
			return err
		}
		return s.coinRepo.WithTx(tx).AddCoins(userID, amount, models.TxTypeMatchRefund, desc)
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeAlreadyExists) {
			return nil
		}
		logger.Error("Refund settlement failed", "chat_id", session.ID, "user_id", userID, "error", err)
		return err
	}

	logger.Info("Search cost refunded", "chat_id", session.ID, "user_id", userID, "amount", amount)
	return nil
}
