package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/anonchat_bot/internal/config"
	"github.com/mroshb/anonchat_bot/internal/handlers"
	"github.com/mroshb/anonchat_bot/internal/models"
	"github.com/mroshb/anonchat_bot/internal/repositories"
	"github.com/mroshb/anonchat_bot/internal/services"
	"github.com/mroshb/anonchat_bot/pkg/errors"
	"github.com/mroshb/anonchat_bot/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	config   *config.Config
	db       *gorm.DB
	queue    *repositories.QueueRepository
	handlers *handlers.HandlerManager

	// Worker pool for parallel processing
	workerChans []chan tgbotapi.Update
}

func InitBot(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)

	bot := &Bot{
		api:         api,
		config:      cfg,
		db:          db,
		workerChans: make([]chan tgbotapi.Update, 10), // 10 workers
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	coinRepo := repositories.NewCoinRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	queueRepo := repositories.NewQueueRepository(rdb)
	bot.queue = queueRepo

	// Initialize services
	economySvc := services.NewEconomyService(cfg, db, coinRepo, sessionRepo)
	matchSvc := services.NewMatchService(queueRepo, sessionRepo, userRepo, economySvc)
	relaySvc := services.NewRelayService(sessionRepo, messageRepo, userRepo, &relayTransport{bot: bot})

	// Initialize handler manager
	bot.handlers = handlers.NewHandlerManager(cfg, db, userRepo, coinRepo, sessionRepo, messageRepo, matchSvc, relaySvc, economySvc)

	// Start workers
	for i := 0; i < 10; i++ {
		bot.workerChans[i] = make(chan tgbotapi.Update, 100)
		go bot.startWorker(bot.workerChans[i])
	}

	// Start update listener
	go bot.startUpdateListener()

	// Start background jobs
	go bot.startBackgroundJobs()

	return bot, nil
}

func (b *Bot) startWorker(ch chan tgbotapi.Update) {
	for update := range ch {
		b.handleUpdate(update)
	}
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for {
		logger.Info("Starting update listener...")
		updates := b.api.GetUpdatesChan(u)

		for update := range updates {
			// Find userID for hashing
			var userID int64
			if update.Message != nil {
				userID = update.Message.From.ID
			} else if update.EditedMessage != nil {
				userID = update.EditedMessage.From.ID
			} else if update.CallbackQuery != nil {
				userID = update.CallbackQuery.From.ID
			}

			if userID != 0 {
				// Hashed dispatch to workers to ensure per-user ordered processing
				workerIdx := userID % int64(len(b.workerChans))
				if workerIdx < 0 {
					workerIdx = -workerIdx
				}
				b.workerChans[workerIdx] <- update
			} else {
				go b.handleUpdate(update)
			}
		}

		logger.Warn("Update channel closed. Restarting in 5 seconds...")
		time.Sleep(5 * time.Second)
	}
}

// startBackgroundJobs sweeps expired waiting entries once a minute and tells
// the affected users their search expired.
func (b *Bot) startBackgroundJobs() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		pruned, err := b.queue.PruneStale(ctx, b.config.GetQueueTTL())
		cancel()
		if err != nil {
			logger.Error("Failed to prune stale waiters", "error", err)
		}

		for _, userID := range pruned {
			user, err := b.handlers.UserRepo.GetUserByID(userID)
			if err != nil {
				logger.Error("Failed to load pruned waiter", "user_id", userID, "error", err)
				continue
			}
			b.handlers.UserRepo.UpdateUserStatus(userID, models.UserStatusOnline)
			b.sendMessage(user.TelegramID,
				"⌛ جستجوی شما منقضی شد. می‌توانید دوباره جستجو کنید.",
				handlers.MainMenuKeyboard())
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in handleUpdate", "error", r)
		}
	}()

	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.EditedMessage != nil {
		b.handleEditedMessage(update.EditedMessage)
	} else if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	userID := message.From.ID

	logger.Debug("Received message",
		"user_id", userID,
		"text", message.Text,
		"has_photo", message.Photo != nil,
	)

	user, err := b.handlers.UserRepo.GetUserByTelegramID(userID)
	if err != nil {
		if isUnregistered(err) {
			b.handlers.HandleRegistration(userID, message.Text, b)
		} else {
			logger.Error("Failed to load user", "telegram_id", userID, "error", err)
		}
		return
	}

	b.handlers.UserRepo.UpdateLastActivity(user.ID)
	if user.Status == models.UserStatusOffline {
		b.handlers.UserRepo.UpdateUserStatus(user.ID, models.UserStatusOnline)
	}

	if message.IsCommand() {
		b.handleCommand(message, user)
		return
	}

	if b.handleButtonPress(message, user) {
		return
	}

	// Anything else from a user in an active chat is relayed to the partner.
	session, err := b.handlers.SessionRepo.GetActiveSessionFor(user.ID)
	if err != nil {
		logger.Error("Failed to load active session", "user_id", user.ID, "error", err)
		return
	}
	if session != nil {
		b.handlers.HandleChatMessage(user, session, message, b)
		return
	}

	if queued, _ := b.queue.IsQueued(context.Background(), user.ID); queued {
		b.sendMessage(userID, "🔍 هنوز در حال جستجو هستید...", handlers.SearchingKeyboard())
		return
	}

	b.sendMessage(userID, "از منوی زیر انتخاب کنید:", handlers.MainMenuKeyboard())
}

func (b *Bot) handleCommand(message *tgbotapi.Message, user *models.User) {
	switch message.Command() {
	case "start":
		b.handlers.HandleStart(user, b)
	case "balance":
		b.handlers.ShowBalance(user, b)
	case "cancel":
		b.handlers.CancelSearch(context.Background(), user, b)
	case "end":
		b.handlers.EndChat(user, b)
	default:
		b.sendMessage(user.TelegramID, "دستور ناشناخته. از منوی زیر استفاده کنید.", handlers.MainMenuKeyboard())
	}
}

// isUnregistered reports whether a user lookup failed because no such user
// exists. A store error must not drop an existing user into onboarding.
func isUnregistered(err error) bool {
	return errors.HasCode(err, errors.ErrCodeNotFound)
}

func normalizeButton(s string) string {
	return strings.ReplaceAll(s, "‌", "")
}

func (b *Bot) handleButtonPress(message *tgbotapi.Message, user *models.User) bool {
	btn := normalizeButton(message.Text)
	ctx := context.Background()

	switch btn {
	case normalizeButton(handlers.BtnSearchAny):
		b.handlers.StartSearch(ctx, user, models.SearchIntentAny, b)
	case normalizeButton(handlers.BtnSearchMale):
		b.handlers.StartSearch(ctx, user, models.SearchIntentMale, b)
	case normalizeButton(handlers.BtnSearchFemale):
		b.handlers.StartSearch(ctx, user, models.SearchIntentFemale, b)
	case normalizeButton(handlers.BtnBalance):
		b.handlers.ShowBalance(user, b)
	case normalizeButton(handlers.BtnCancel):
		b.handlers.CancelSearch(ctx, user, b)
	case normalizeButton(handlers.BtnEndChat):
		b.handlers.EndChat(user, b)
	case normalizeButton(handlers.BtnSafeModeOff):
		// Button shows the current state; pressing it flips it.
		b.handlers.ToggleSafeMode(user, true, b)
	case normalizeButton(handlers.BtnSafeModeOn):
		b.handlers.ToggleSafeMode(user, false, b)
	case normalizeButton(handlers.BtnDeleteHistory):
		b.handlers.DeleteHistory(user, b)
	default:
		return false
	}
	return true
}

func (b *Bot) handleEditedMessage(message *tgbotapi.Message) {
	user, err := b.handlers.UserRepo.GetUserByTelegramID(message.From.ID)
	if err != nil || user == nil {
		return
	}
	b.handlers.HandleEditedMessage(user, message, b)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	user, err := b.handlers.UserRepo.GetUserByTelegramID(query.From.ID)
	if err != nil || user == nil {
		b.AnswerCallback(query.ID, "")
		return
	}

	switch query.Data {
	case "search:cancel":
		b.AnswerCallback(query.ID, "جستجو لغو شد")
		b.handlers.CancelSearch(context.Background(), user, b)
	default:
		b.AnswerCallback(query.ID, "")
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) sendMessage(chatID int64, text string, keyboard interface{}) int {
	// Add RTL mark for Persian support
	rtlText := "‏" + text
	msg := tgbotapi.NewMessage(chatID, rtlText)
	msg.ParseMode = tgbotapi.ModeHTML

	switch kb := keyboard.(type) {
	case tgbotapi.ReplyKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.InlineKeyboardMarkup:
		msg.ReplyMarkup = kb
	case tgbotapi.ReplyKeyboardRemove:
		msg.ReplyMarkup = kb
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		sentMsg, err := b.api.Send(msg)
		if err != nil {
			logger.Error("Failed to send message", "error", err, "chat_id", chatID, "attempt", i+1)

			if strings.Contains(err.Error(), "connection reset") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "network is unreachable") {
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			return 0
		}
		return sentMsg.MessageID
	}
	return 0
}

func (b *Bot) SendMessage(chatID int64, text string, keyboard interface{}) int {
	return b.sendMessage(chatID, text, keyboard)
}

func (b *Bot) EditMessage(chatID int64, messageID int, text string, keyboard interface{}) {
	// Add RTL mark
	rtlText := "‏" + text
	msg := tgbotapi.NewEditMessageText(chatID, messageID, rtlText)
	msg.ParseMode = tgbotapi.ModeHTML

	if keyboard != nil {
		if kb, ok := keyboard.(tgbotapi.InlineKeyboardMarkup); ok {
			msg.ReplyMarkup = &kb
		}
	}

	if _, err := b.api.Send(msg); err != nil {
		logger.Error("Failed to edit message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

func (b *Bot) AnswerCallback(callbackID string, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		logger.Error("Failed to answer callback query", "error", err, "callback_id", callbackID)
	}
}

// relayTransport adapts the bot API to the relay's delivery contract. Relayed
// content is sent verbatim: no RTL mark, no parse mode.
type relayTransport struct {
	bot *Bot
}

// sendParams builds the raw API method and parameters for one outbound relay
// message. Raw because the bot library predates protect_content; the typed
// send configs have nowhere to carry it.
func sendParams(chatID int64, out *services.OutboundMessage) (string, tgbotapi.Params, error) {
	params := tgbotapi.Params{"chat_id": strconv.FormatInt(chatID, 10)}

	var method string
	switch out.Type {
	case models.MessageTypeText:
		method = "sendMessage"
		params["text"] = out.Text
	case models.MessageTypePhoto:
		method = "sendPhoto"
		params["photo"] = out.FileID
		params.AddNonEmpty("caption", out.Text)
	case models.MessageTypeVideo:
		method = "sendVideo"
		params["video"] = out.FileID
		params.AddNonEmpty("caption", out.Text)
	case models.MessageTypeVoice:
		method = "sendVoice"
		params["voice"] = out.FileID
	case models.MessageTypeDocument:
		method = "sendDocument"
		params["document"] = out.FileID
		params.AddNonEmpty("caption", out.Text)
	case models.MessageTypeSticker:
		method = "sendSticker"
		params["sticker"] = out.FileID
	default:
		return "", nil, fmt.Errorf("unsupported message type %q", out.Type)
	}

	if out.Protect {
		params["protect_content"] = "true"
	}
	if out.ReplyToMessageID != 0 {
		params.AddNonZero("reply_to_message_id", out.ReplyToMessageID)
		params["allow_sending_without_reply"] = "true"
	}

	return method, params, nil
}

func (t *relayTransport) SendMessage(chatID int64, out *services.OutboundMessage) (int, error) {
	method, params, err := sendParams(chatID, out)
	if err != nil {
		return 0, err
	}

	resp, err := t.bot.api.MakeRequest(method, params)
	if err != nil {
		return 0, err
	}

	var sent tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *relayTransport) EditMessageText(chatID int64, messageID int, newText string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, newText)
	_, err := t.bot.api.Request(edit)
	return err
}

func (t *relayTransport) EditMessageCaption(chatID int64, messageID int, newCaption string) error {
	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, newCaption)
	_, err := t.bot.api.Request(edit)
	return err
}

// SetReaction goes through a raw API call: the bot library predates the
// setMessageReaction method.
func (t *relayTransport) SetReaction(chatID int64, messageID int, emoji string) error {
	reaction, err := json.Marshal([]map[string]string{
		{"type": "emoji", "emoji": emoji},
	})
	if err != nil {
		return err
	}

	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(chatID, 10),
		"message_id": strconv.Itoa(messageID),
		"reaction":   string(reaction),
	}
	_, err = t.bot.api.MakeRequest("setMessageReaction", params)
	return err
}

func (t *relayTransport) DeleteMessage(chatID int64, messageID int) error {
	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	_, err := t.bot.api.Request(del)
	return err
}
