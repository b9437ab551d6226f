package services

import (
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/internal/repositories"
	"github.com/mroshb/anonchat_bot/internal/security"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
)

// OutboundMessage is one unit handed to the transport for delivery.
type OutboundMessage struct {
	Type    string
	Text    string // text or caption
	FileID  string
	Protect bool
	// ReplyToMessageID is the transport message id on the recipient's side,
	// 0 for none.
	ReplyToMessageID int
}

// Transport is the opaque "deliver to participant" capability. Implemented
// by the Telegram bot layer; mocked in tests.
type Transport interface {
	SendMessage(chatID int64, msg *OutboundMessage) (int, error)
	EditMessageText(chatID int64, messageID int, newText string) error
	EditMessageCaption(chatID int64, messageID int, newCaption string) error
	SetReaction(chatID int64, messageID int, emoji string) error
	DeleteMessage(chatID int64, messageID int) error
}

// InboundMessage is one unit received from a participant.
type InboundMessage struct {
	Type        string
	Text        string // text or caption
	FileID      string
	TgMessageID int
	// ReplyToTgMessageID is the sender-side transport id of the message
	// being replied to, 0 for none.
	ReplyToTgMessageID int
}

// RelayService forwards messages, edits and reactions between the two
// participants of an active session. Every relayed message is stored under
// both transport message ids so later units resolve in either direction, and
// content protection is the OR of the two safe-mode flags computed at send
// time.
type RelayService struct {
	sessionRepo *repositories.SessionRepository
	messageRepo *repositories.MessageRepository
	userRepo    *repositories.UserRepository
	transport   Transport
}

func NewRelayService(sessionRepo *repositories.SessionRepository, messageRepo *repositories.MessageRepository, userRepo *repositories.UserRepository, transport Transport) *RelayService {
	return &RelayService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		transport:   transport,
	}
}

func (s *RelayService) resolveSides(session *models.ChatSession, senderID uint) (senderSide, partnerSide int, partner *models.User, err error) {
	senderSide = session.SideOf(senderID)
	if senderSide == 0 {
		return 0, 0, nil, errors.New(errors.ErrCodeNotFound, "user is not a participant of this chat")
	}
	if session.Status != models.ChatStatusActive {
		return 0, 0, nil, errors.New(errors.ErrCodeSessionNotActive, "chat session is not active")
	}

	partnerSide = 3 - senderSide
	partner, err = s.userRepo.GetUserByID(session.PartnerID(senderID))
	if err != nil {
		return 0, 0, nil, err
	}
	return senderSide, partnerSide, partner, nil
}

// RelayMessage delivers a new message to the partner and records it. The
// record is written whether or not delivery succeeds: a DELIVERY_FAILED
// error tells the caller to notify the sender, but never rolls the message
// back or ends the session.
func (s *RelayService) RelayMessage(session *models.ChatSession, sender *models.User, in *InboundMessage) (*models.ChatMessage, error) {
	senderSide, partnerSide, partner, err := s.resolveSides(session, sender.ID)
	if err != nil {
		return nil, err
	}

	out := &OutboundMessage{
		Type:    in.Type,
		Text:    security.SanitizeString(in.Text),
		FileID:  in.FileID,
		Protect: session.Protected(),
	}

	var replyToID *uint
	if in.ReplyToTgMessageID != 0 {
		original, err := s.messageRepo.GetByTransportID(session.ID, senderSide, in.ReplyToTgMessageID)
		if err == nil {
			// Thread the reply on the partner's copy of the original.
			out.ReplyToMessageID = original.TgMessageIDFor(partnerSide)
			replyToID = &original.ID
		}
	}

	deliveredID, sendErr := s.transport.SendMessage(partner.TelegramID, out)

	message := &models.ChatMessage{
		ChatID:    session.ID,
		SenderID:  sender.ID,
		Type:      in.Type,
		Text:      out.Text,
		FileID:    in.FileID,
		ReplyToID: replyToID,
	}
	if senderSide == 1 {
		message.TgMessageID1 = in.TgMessageID
		message.TgMessageID2 = deliveredID
	} else {
		message.TgMessageID1 = deliveredID
		message.TgMessageID2 = in.TgMessageID
	}

	if err := s.messageRepo.RecordMessage(message, senderSide); err != nil {
		return nil, err
	}

	if sendErr != nil {
		logger.Warn("Message delivery failed", "chat_id", session.ID, "to", partner.ID, "error", sendErr)
		return message, errors.Wrap(sendErr, errors.ErrCodeDeliveryFailed, "failed to deliver message to partner")
	}

	return message, nil
}

// RelayEdit applies an edit to the stored record and forwards it to the
// partner's copy.
func (s *RelayService) RelayEdit(session *models.ChatSession, senderID uint, senderTgMessageID int, newText string) error {
	senderSide, partnerSide, partner, err := s.resolveSides(session, senderID)
	if err != nil {
		return err
	}

	original, err := s.messageRepo.GetByTransportID(session.ID, senderSide, senderTgMessageID)
	if err != nil {
		return err
	}

	newText = security.SanitizeString(newText)
	if err := s.messageRepo.UpdateEdited(original.ID, newText); err != nil {
		return err
	}

	partnerTgID := original.TgMessageIDFor(partnerSide)
	if partnerTgID == 0 {
		return errors.New(errors.ErrCodeDeliveryFailed, "original message was never delivered to partner")
	}

	if original.Type == models.MessageTypeText {
		err = s.transport.EditMessageText(partner.TelegramID, partnerTgID, newText)
	} else {
		err = s.transport.EditMessageCaption(partner.TelegramID, partnerTgID, newText)
	}
	if err != nil {
		logger.Warn("Edit delivery failed", "chat_id", session.ID, "to", partner.ID, "error", err)
		return errors.Wrap(err, errors.ErrCodeDeliveryFailed, "failed to deliver edit to partner")
	}

	return nil
}

// RelayReaction forwards a reaction onto the partner's copy of the reacted
// message. Nothing is persisted beyond the already stored mapping.
func (s *RelayService) RelayReaction(session *models.ChatSession, senderID uint, senderTgMessageID int, emoji string) error {
	senderSide, partnerSide, partner, err := s.resolveSides(session, senderID)
	if err != nil {
		return err
	}

	original, err := s.messageRepo.GetByTransportID(session.ID, senderSide, senderTgMessageID)
	if err != nil {
		return err
	}

	partnerTgID := original.TgMessageIDFor(partnerSide)
	if partnerTgID == 0 {
		return errors.New(errors.ErrCodeDeliveryFailed, "original message was never delivered to partner")
	}

	if err := s.transport.SetReaction(partner.TelegramID, partnerTgID, emoji); err != nil {
		logger.Warn("Reaction delivery failed", "chat_id", session.ID, "to", partner.ID, "error", err)
		return errors.Wrap(err, errors.ErrCodeDeliveryFailed, "failed to deliver reaction to partner")
	}

	return nil
}

// DeleteHistoryFor soft-deletes the chat for one participant and best-effort
// removes the copies from their own Telegram chat. The partner's view and
// the durable records are untouched.
func (s *RelayService) DeleteHistoryFor(session *models.ChatSession, user *models.User) (int64, error) {
	side := session.SideOf(user.ID)
	if side == 0 {
		return 0, errors.New(errors.ErrCodeNotFound, "user is not a participant of this chat")
	}

	messages, err := s.messageRepo.ListForChat(session.ID, side)
	if err != nil {
		return 0, err
	}

	count, err := s.messageRepo.SoftDeleteFor(session.ID, side)
	if err != nil {
		return 0, err
	}

	for _, m := range messages {
		if tgID := m.TgMessageIDFor(side); tgID != 0 {
			if err := s.transport.DeleteMessage(user.TelegramID, tgID); err != nil {
				logger.Debug("Failed to delete message copy", "chat_id", session.ID, "tg_message_id", tgID, "error", err)
			}
		}
	}

	return count, nil
}
