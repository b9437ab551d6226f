package services

import (
	"context"
	"time"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/internal/repositories"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
)

// WaitingQueue is the matchmaking pool contract. Implemented by the Redis
// queue repository; faked in tests.
type WaitingQueue interface {
	Enqueue(ctx context.Context, entry *models.WaitingEntry) error
	Dequeue(ctx context.Context, userID uint) error
	IsQueued(ctx context.Context, userID uint) (bool, error)
	Claim(ctx context.Context, requesterID uint, gender, intent string, excluded []uint) (*models.WaitingEntry, error)
	Requeue(ctx context.Context, entry *models.WaitingEntry) error
}

// MatchOutcome is the result of a match request: either an immediate pairing
// or a parked waiting entry. SkippedPartners lists waiters whose entry was
// consumed but whose own join cost could no longer be covered; the handler
// layer notifies them.
type MatchOutcome struct {
	Matched         bool
	Session         *models.ChatSession
	Partner         *models.User
	SkippedPartners []uint
}

type MatchService struct {
	queue       WaitingQueue
	sessionRepo *repositories.SessionRepository
	userRepo    *repositories.UserRepository
	economy     *EconomyService
}

func NewMatchService(queue WaitingQueue, sessionRepo *repositories.SessionRepository, userRepo *repositories.UserRepository, economy *EconomyService) *MatchService {
	return &MatchService{
		queue:       queue,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		economy:     economy,
	}
}

// RequestMatch pairs the user with the oldest compatible waiter, or parks
// them in the pool. Preconditions are checked in order: active session,
// existing queue entry, then the requester's own balance — before any claim,
// so a requester who cannot pay never removes anyone from the pool.
func (s *MatchService) RequestMatch(ctx context.Context, user *models.User, intent string) (*MatchOutcome, error) {
	if !models.ValidSearchIntent(intent) {
		return nil, errors.New(errors.ErrCodeValidation, "unknown search intent")
	}

	active, err := s.sessionRepo.GetActiveSessionFor(user.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, errors.New(errors.ErrCodeAlreadyInSession, "user already has an active chat")
	}

	queued, err := s.queue.IsQueued(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if queued {
		return nil, errors.New(errors.ErrCodeAlreadyQueued, "user already in matchmaking queue")
	}

	if err := s.economy.CheckBalance(user.ID, intent); err != nil {
		return nil, err
	}

	excluded, err := s.userRepo.GetBlockedUserIDs(user.ID)
	if err != nil {
		return nil, err
	}

	outcome := &MatchOutcome{}
	for {
		entry, err := s.queue.Claim(ctx, user.ID, user.Gender, intent, excluded)
		if err != nil {
			return nil, err
		}

		if entry == nil {
			if err := s.queue.Enqueue(ctx, &models.WaitingEntry{
				UserID:   user.ID,
				Gender:   user.Gender,
				Intent:   intent,
				JoinedAt: time.Now(),
			}); err != nil {
				return nil, err
			}
			return outcome, nil
		}

		session, err := s.settlePairing(ctx, user, intent, entry, outcome)
		if err != nil {
			return nil, err
		}
		if session == nil {
			// Partner rejected; keep claiming with them excluded.
			excluded = append(excluded, entry.UserID)
			continue
		}

		partner, err := s.userRepo.GetUserByID(entry.UserID)
		if err != nil {
			return nil, err
		}

		outcome.Matched = true
		outcome.Session = session
		outcome.Partner = partner
		logger.Info("Match created", "chat_id", session.ID, "user1", session.User1ID, "user2", session.User2ID)
		return outcome, nil
	}
}

// settlePairing runs the debit/insert sequence for a claimed partner.
// Returns (nil, nil) when this partner must be skipped and the claim loop
// should continue. Any abort path either requeues the partner with their
// original join time or refunds every debit taken, so a claimed waiter is
// never left stranded.
func (s *MatchService) settlePairing(ctx context.Context, user *models.User, intent string, entry *models.WaitingEntry, outcome *MatchOutcome) (*models.ChatSession, error) {
	requesterCost, err := s.economy.DebitJoinCost(user.ID, intent)
	if err != nil {
		if reclaimErr := s.queue.Requeue(ctx, entry); reclaimErr != nil {
			logger.Error("Failed to requeue claimed waiter", "user_id", entry.UserID, "error", reclaimErr)
			return nil, reclaimErr
		}
		return nil, err
	}

	partnerCost, err := s.economy.DebitJoinCost(entry.UserID, entry.Intent)
	if err != nil {
		if refundErr := s.economy.RefundJoinCost(user.ID, requesterCost); refundErr != nil {
			return nil, refundErr
		}
		if !errors.HasCode(err, errors.ErrCodeInsufficientFunds) {
			if reclaimErr := s.queue.Requeue(ctx, entry); reclaimErr != nil {
				logger.Error("Failed to requeue claimed waiter", "user_id", entry.UserID, "error", reclaimErr)
				return nil, reclaimErr
			}
			return nil, err
		}
		// The waiter can no longer cover their own targeted search; their
		// entry is consumed and the handler layer tells them why.
		logger.Warn("Skipping claimed waiter with insufficient balance", "user_id", entry.UserID)
		outcome.SkippedPartners = append(outcome.SkippedPartners, entry.UserID)
		return nil, nil
	}

	session, err := s.sessionRepo.CreateSession(entry.UserID, user.ID, partnerCost, requesterCost)
	if err == nil {
		return session, nil
	}

	if refundErr := s.economy.RefundJoinCost(user.ID, requesterCost); refundErr != nil {
		return nil, refundErr
	}
	if refundErr := s.economy.RefundJoinCost(entry.UserID, partnerCost); refundErr != nil {
		return nil, refundErr
	}

	if errors.HasCode(err, errors.ErrCodeConflictingSession) {
		requesterActive, checkErr := s.sessionRepo.GetActiveSessionFor(user.ID)
		if checkErr != nil {
			return nil, checkErr
		}
		if requesterActive == nil {
			// The conflict is the partner's; drop them and keep looking.
			logger.Warn("Claimed waiter already had an active chat", "user_id", entry.UserID)
			outcome.SkippedPartners = append(outcome.SkippedPartners, entry.UserID)
			return nil, nil
		}
	}

	if reclaimErr := s.queue.Requeue(ctx, entry); reclaimErr != nil {
		logger.Error("Failed to requeue claimed waiter", "user_id", entry.UserID, "error", reclaimErr)
		return nil, reclaimErr
	}
	return nil, err
}

// CancelWait removes the user's waiting entry. Always safe and immediate:
// nothing is reserved or debited while waiting, so there is no state to
// unwind. A no-op when the user is not queued.
func (s *MatchService) CancelWait(ctx context.Context, userID uint) error {
	return s.queue.Dequeue(ctx, userID)
}

// EndResult reports the refund evaluation of an ended session.
type EndResult struct {
	Session         *models.ChatSession
	CallerRefunded  bool
	PartnerRefunded bool
}

// EndSession moves the session to its terminal state and settles refunds for
// both sides. Fails with SESSION_NOT_ACTIVE when already ended.
func (s *MatchService) EndSession(chatID, endedBy uint) (*EndResult, error) {
	session, err := s.sessionRepo.GetSessionByID(chatID)
	if err != nil {
		return nil, err
	}
	callerSide := session.SideOf(endedBy)
	if callerSide == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "user is not a participant of this chat")
	}

	ended, err := s.sessionRepo.EndSession(chatID, endedBy)
	if err != nil {
		return nil, err
	}

	refunded1, refunded2, err := s.economy.SettleRefund(ended)
	if err != nil {
		return nil, err
	}

	result := &EndResult{Session: ended}
	if callerSide == 1 {
		result.CallerRefunded = refunded1
		result.PartnerRefunded = refunded2
	} else {
		result.CallerRefunded = refunded2
		result.PartnerRefunded = refunded1
	}
	return result, nil
}
