package handlers

import (
	"context"
	"fmt"

	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
)

// HandleStart greets a registered user with the main menu.
func (h *HandlerManager) HandleStart(user *models.User, bot BotInterface) {
	if err := h.UserRepo.UpdateUserStatus(user.ID, models.UserStatusOnline); err != nil {
		logger.Error("Failed to update status", "user_id", user.ID, "error", err)
	}

	text := "👋 خوش آمدید به چت ناشناس!\n\n" +
		"از منوی زیر یک حالت جستجو انتخاب کنید.\n" +
		"🎲 چت شانسی رایگان است؛ جستجوی هدفمند سکه کم می‌کند."
	bot.SendMessage(user.TelegramID, text, MainMenuKeyboard())
}

// HandleRegistration runs the gender-selection step for an unregistered user.
// Returns true when the update was consumed by the registration flow.
func (h *HandlerManager) HandleRegistration(telegramID int64, text string, bot BotInterface) bool {
	var gender string
	switch text {
	case BtnMale:
		gender = models.GenderMale
	case BtnFemale:
		gender = models.GenderFemale
	default:
		bot.SendMessage(telegramID,
			"👋 به چت ناشناس خوش آمدید!\n\nبرای شروع، جنسیت خود را انتخاب کنید:",
			GenderKeyboard())
		return true
	}

	user := &models.User{
		TelegramID:  telegramID,
		Gender:      gender,
		CoinBalance: h.Config.DefaultCoins,
		Status:      models.UserStatusOnline,
	}
	if err := h.UserRepo.CreateUser(user); err != nil {
		logger.Error("Failed to register user", "telegram_id", telegramID, "error", err)
		bot.SendMessage(telegramID, "❌ خطا در ثبت‌نام. دوباره تلاش کنید.", GenderKeyboard())
		return true
	}

	bonus := &models.CoinTransaction{
		UserID:          user.ID,
		Amount:          h.Config.DefaultCoins,
		TransactionType: models.TxTypeWelcomeBonus,
		Description:     "هدیه خوش‌آمدگویی",
	}
	if err := h.DB.Create(bonus).Error; err != nil {
		logger.Error("Failed to record welcome bonus", "user_id", user.ID, "error", err)
	}

	logger.Info("User registered", "user_id", user.ID, "gender", gender)
	bot.SendMessage(telegramID,
		fmt.Sprintf("✅ ثبت‌نام انجام شد!\n\n💰 %d سکه هدیه گرفتید.", h.Config.DefaultCoins),
		MainMenuKeyboard())
	return true
}

// StartSearch requests a match for the user with the given intent and reports
// the outcome: an immediate pairing, a parked search, or a rejection.
func (h *HandlerManager) StartSearch(ctx context.Context, user *models.User, intent string, bot BotInterface) {
	outcome, err := h.MatchSvc.RequestMatch(ctx, user, intent)
	if err != nil {
		switch {
		case errors.HasCode(err, errors.ErrCodeAlreadyInSession):
			bot.SendMessage(user.TelegramID, "⚠️ شما در حال حاضر در یک چت هستید. ابتدا آن را پایان دهید.", nil)
		case errors.HasCode(err, errors.ErrCodeAlreadyQueued):
			bot.SendMessage(user.TelegramID, "🔍 شما هم‌اکنون در حال جستجو هستید...", SearchingKeyboard())
		case errors.HasCode(err, errors.ErrCodeInsufficientFunds):
			cost := h.EconomySvc.JoinCost(intent)
			bot.SendMessage(user.TelegramID,
				fmt.Sprintf("💸 سکه کافی ندارید!\n\nجستجوی هدفمند %d سکه هزینه دارد. می‌توانید از چت شانسی رایگان استفاده کنید.", cost),
				MainMenuKeyboard())
		default:
			logger.Error("Match request failed", "user_id", user.ID, "error", err)
			bot.SendMessage(user.TelegramID, "❌ خطا در جستجو. دوباره تلاش کنید.", MainMenuKeyboard())
		}
		return
	}

	h.notifySkippedPartners(outcome.SkippedPartners, bot)

	if !outcome.Matched {
		if err := h.UserRepo.UpdateUserStatus(user.ID, models.UserStatusSearching); err != nil {
			logger.Error("Failed to update status", "user_id", user.ID, "error", err)
		}
		bot.SendMessage(user.TelegramID, "🔍 در حال جستجوی هم‌صحبت...\n\nبه محض پیدا شدن به شما خبر می‌دهیم.", SearchingKeyboard())
		return
	}

	h.announceMatch(user, outcome.Partner, outcome.Session, bot)
}

func (h *HandlerManager) announceMatch(user, partner *models.User, session *models.ChatSession, bot BotInterface) {
	for _, u := range []*models.User{user, partner} {
		if err := h.UserRepo.UpdateUserStatus(u.ID, models.UserStatusInChat); err != nil {
			logger.Error("Failed to update status", "user_id", u.ID, "error", err)
		}
	}

	text := "✅ هم‌صحبت پیدا شد!\n\n" +
		"هر پیامی بفرستید به او می‌رسد. هویت هر دو طرف ناشناس می‌ماند.\n" +
		"برای پایان گفتگو از دکمه «" + BtnEndChat + "» استفاده کنید."

	bot.SendMessage(user.TelegramID, text, ChatKeyboard(false))
	bot.SendMessage(partner.TelegramID, text, ChatKeyboard(false))
}

// notifySkippedPartners tells waiters whose entry was consumed but whose
// balance no longer covered their own targeted search.
func (h *HandlerManager) notifySkippedPartners(userIDs []uint, bot BotInterface) {
	for _, id := range userIDs {
		skipped, err := h.UserRepo.GetUserByID(id)
		if err != nil {
			logger.Error("Failed to load skipped waiter", "user_id", id, "error", err)
			continue
		}
		if err := h.UserRepo.UpdateUserStatus(id, models.UserStatusOnline); err != nil {
			logger.Error("Failed to update status", "user_id", id, "error", err)
		}
		bot.SendMessage(skipped.TelegramID,
			"💸 جستجوی شما لغو شد: سکه کافی برای جستجوی هدفمند ندارید.",
			MainMenuKeyboard())
	}
}

// CancelSearch removes the user's waiting entry.
func (h *HandlerManager) CancelSearch(ctx context.Context, user *models.User, bot BotInterface) {
	if err := h.MatchSvc.CancelWait(ctx, user.ID); err != nil {
		logger.Error("Failed to cancel search", "user_id", user.ID, "error", err)
		bot.SendMessage(user.TelegramID, "❌ خطا در لغو جستجو.", MainMenuKeyboard())
		return
	}
	if err := h.UserRepo.UpdateUserStatus(user.ID, models.UserStatusOnline); err != nil {
		logger.Error("Failed to update status", "user_id", user.ID, "error", err)
	}
	bot.SendMessage(user.TelegramID, "✅ جستجو لغو شد.", MainMenuKeyboard())
}

// EndChat ends the user's active session and reports the refund outcome to
// both participants.
func (h *HandlerManager) EndChat(user *models.User, bot BotInterface) {
	session, err := h.SessionRepo.GetActiveSessionFor(user.ID)
	if err != nil {
		logger.Error("Failed to load active session", "user_id", user.ID, "error", err)
		bot.SendMessage(user.TelegramID, "❌ خطایی رخ داد. دوباره تلاش کنید.", MainMenuKeyboard())
		return
	}
	if session == nil {
		bot.SendMessage(user.TelegramID, "⚠️ چت فعالی ندارید.", MainMenuKeyboard())
		return
	}

	result, err := h.MatchSvc.EndSession(session.ID, user.ID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeSessionNotActive) {
			bot.SendMessage(user.TelegramID, "⚠️ این چت قبلاً پایان یافته است.", MainMenuKeyboard())
			return
		}
		logger.Error("Failed to end session", "chat_id", session.ID, "error", err)
		bot.SendMessage(user.TelegramID, "❌ خطا در پایان چت.", MainMenuKeyboard())
		return
	}

	partner, err := h.UserRepo.GetUserByID(session.PartnerID(user.ID))
	if err != nil {
		logger.Error("Failed to load partner", "chat_id", session.ID, "error", err)
		return
	}

	for _, u := range []*models.User{user, partner} {
		if err := h.UserRepo.UpdateUserStatus(u.ID, models.UserStatusOnline); err != nil {
			logger.Error("Failed to update status", "user_id", u.ID, "error", err)
		}
	}

	callerText := "🔚 چت پایان یافت."
	if result.CallerRefunded {
		callerText += "\n💰 هزینه جستجوی شما برگشت داده شد."
	}
	bot.SendMessage(user.TelegramID, callerText, MainMenuKeyboard())

	partnerText := "🔚 هم‌صحبت شما گفتگو را پایان داد."
	if result.PartnerRefunded {
		partnerText += "\n💰 هزینه جستجوی شما برگشت داده شد."
	}
	bot.SendMessage(partner.TelegramID, partnerText, MainMenuKeyboard())
}

// ShowBalance sends the user their current coin balance.
func (h *HandlerManager) ShowBalance(user *models.User, bot BotInterface) {
	balance, err := h.CoinRepo.GetBalance(user.ID)
	if err != nil {
		logger.Error("Failed to get balance", "user_id", user.ID, "error", err)
		bot.SendMessage(user.TelegramID, "❌ خطا در دریافت موجودی.", nil)
		return
	}
	bot.SendMessage(user.TelegramID, fmt.Sprintf("💰 موجودی شما: %d سکه", balance), nil)
}
