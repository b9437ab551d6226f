package handlers

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/internal/services"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
)

// Emoji Telegram accepts for message reactions. A reply consisting of exactly
// one of these is treated as a reaction on the replied-to message instead of a
// relayed message.
var reactionEmojis = map[string]bool{
	"👍": true,
	"👎": true,
	"❤": true,
	"🔥": true,
	"😁": true,
	"😢": true,
	"🎉": true,
}

func normalizeReaction(text string) string {
	// Telegram wants the bare heart, keyboards send it with a variation
	// selector.
	return strings.ReplaceAll(strings.TrimSpace(text), "️", "")
}

func isReaction(m *tgbotapi.Message) bool {
	return m.ReplyToMessage != nil && m.Text != "" && reactionEmojis[normalizeReaction(m.Text)]
}

func classifyMessage(m *tgbotapi.Message) (msgType, text, fileID string, ok bool) {
	switch {
	case m.Text != "":
		return models.MessageTypeText, m.Text, "", true
	case len(m.Photo) > 0:
		return models.MessageTypePhoto, m.Caption, m.Photo[len(m.Photo)-1].FileID, true
	case m.Video != nil:
		return models.MessageTypeVideo, m.Caption, m.Video.FileID, true
	case m.Voice != nil:
		return models.MessageTypeVoice, "", m.Voice.FileID, true
	case m.Document != nil:
		return models.MessageTypeDocument, m.Caption, m.Document.FileID, true
	case m.Sticker != nil:
		return models.MessageTypeSticker, "", m.Sticker.FileID, true
	}
	return "", "", "", false
}

// HandleChatMessage relays one inbound update from a participant of an active
// session: a content message, or a single-emoji reply treated as a reaction.
func (h *HandlerManager) HandleChatMessage(user *models.User, session *models.ChatSession, message *tgbotapi.Message, bot BotInterface) {
	if isReaction(message) {
		err := h.RelaySvc.RelayReaction(session, user.ID, message.ReplyToMessage.MessageID, normalizeReaction(message.Text))
		if err != nil && !errors.HasCode(err, errors.ErrCodeNotFound) {
			logger.Warn("Reaction relay failed", "chat_id", session.ID, "error", err)
			bot.SendMessage(user.TelegramID, "⚠️ واکنش ارسال نشد.", nil)
		}
		return
	}

	msgType, text, fileID, ok := classifyMessage(message)
	if !ok {
		bot.SendMessage(user.TelegramID, "⚠️ این نوع پیام پشتیبانی نمی‌شود.", nil)
		return
	}

	in := &services.InboundMessage{
		Type:        msgType,
		Text:        text,
		FileID:      fileID,
		TgMessageID: message.MessageID,
	}
	if message.ReplyToMessage != nil {
		in.ReplyToTgMessageID = message.ReplyToMessage.MessageID
	}

	_, err := h.RelaySvc.RelayMessage(session, user, in)
	if err != nil {
		switch {
		case errors.HasCode(err, errors.ErrCodeSessionNotActive):
			bot.SendMessage(user.TelegramID, "⚠️ این چت پایان یافته است.", MainMenuKeyboard())
		case errors.HasCode(err, errors.ErrCodeDeliveryFailed):
			bot.SendMessage(user.TelegramID, "⚠️ پیام به هم‌صحبت نرسید. دوباره تلاش کنید.", nil)
		default:
			logger.Error("Message relay failed", "chat_id", session.ID, "error", err)
			bot.SendMessage(user.TelegramID, "❌ خطا در ارسال پیام.", nil)
		}
	}
}

// HandleEditedMessage forwards an edit to the partner's copy.
func (h *HandlerManager) HandleEditedMessage(user *models.User, message *tgbotapi.Message, bot BotInterface) {
	session, err := h.SessionRepo.GetActiveSessionFor(user.ID)
	if err != nil || session == nil {
		return
	}

	newText := message.Text
	if newText == "" {
		newText = message.Caption
	}

	if err := h.RelaySvc.RelayEdit(session, user.ID, message.MessageID, newText); err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return
		}
		logger.Warn("Edit relay failed", "chat_id", session.ID, "error", err)
		bot.SendMessage(user.TelegramID, "⚠️ ویرایش به هم‌صحبت نرسید.", nil)
	}
}

// ToggleSafeMode flips the caller's safe-mode flag on their active session.
// Content protection takes effect for messages sent after the flip.
func (h *HandlerManager) ToggleSafeMode(user *models.User, enable bool, bot BotInterface) {
	session, err := h.SessionRepo.GetActiveSessionFor(user.ID)
	if err != nil {
		logger.Error("Failed to load active session", "user_id", user.ID, "error", err)
		return
	}
	if session == nil {
		bot.SendMessage(user.TelegramID, "⚠️ چت فعالی ندارید.", MainMenuKeyboard())
		return
	}

	if err := h.SessionRepo.ToggleSafeMode(session.ID, user.ID, enable); err != nil {
		logger.Error("Failed to toggle safe mode", "chat_id", session.ID, "error", err)
		bot.SendMessage(user.TelegramID, "❌ خطا در تغییر حالت امن.", nil)
		return
	}

	if enable {
		bot.SendMessage(user.TelegramID,
			"🛡 حالت امن روشن شد. پیام‌های بعدی در هر دو طرف قابل ذخیره یا هدایت نیستند.",
			ChatKeyboard(true))
	} else {
		bot.SendMessage(user.TelegramID, "🛡 حالت امن شما خاموش شد.", ChatKeyboard(false))
	}

	partner, err := h.UserRepo.GetUserByID(session.PartnerID(user.ID))
	if err != nil {
		return
	}
	if enable {
		bot.SendMessage(partner.TelegramID, "🛡 هم‌صحبت شما حالت امن را روشن کرد.", nil)
	} else {
		bot.SendMessage(partner.TelegramID, "🛡 هم‌صحبت شما حالت امن خود را خاموش کرد.", nil)
	}
}

// DeleteHistory clears the caller's view of their active chat.
func (h *HandlerManager) DeleteHistory(user *models.User, bot BotInterface) {
	session, err := h.SessionRepo.GetActiveSessionFor(user.ID)
	if err != nil {
		logger.Error("Failed to load active session", "user_id", user.ID, "error", err)
		return
	}
	if session == nil {
		bot.SendMessage(user.TelegramID, "⚠️ چت فعالی ندارید.", MainMenuKeyboard())
		return
	}

	count, err := h.RelaySvc.DeleteHistoryFor(session, user)
	if err != nil {
		logger.Error("Failed to delete history", "chat_id", session.ID, "error", err)
		bot.SendMessage(user.TelegramID, "❌ خطا در حذف تاریخچه.", nil)
		return
	}

	logger.Info("Chat history deleted for one side", "chat_id", session.ID, "user_id", user.ID, "count", count)
	bot.SendMessage(user.TelegramID, "🗑 تاریخچه چت برای شما پاک شد. هم‌صحبت شما همچنان نسخه خود را دارد.", nil)
}
