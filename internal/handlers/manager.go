package handlers

import (
	"github.com/mroshb/anonchat_bot/internal/config"
	"github.com/mroshb/anonchat_bot/internal/repositories"
	"github.com/mroshb/anonchat_bot/internal/services"
	"gorm.io/gorm"
)

// BotInterface is the surface handlers need from the bot layer for
// user-facing messaging. The relay path talks to the transport through
// services.Transport instead.
type BotInterface interface {
	SendMessage(chatID int64, text string, keyboard interface{}) int
	EditMessage(chatID int64, messageID int, text string, keyboard interface{})
	AnswerCallback(callbackID string, text string)
}

type HandlerManager struct {
	Config      *config.Config
	DB          *gorm.DB
	UserRepo    *repositories.UserRepository
	CoinRepo    *repositories.CoinRepository
	SessionRepo *repositories.SessionRepository
	MessageRepo *repositories.MessageRepository
	MatchSvc    *services.MatchService
	RelaySvc    *services.RelayService
	EconomySvc  *services.EconomyService
}

func NewHandlerManager(
	cfg *config.Config,
	db *gorm.DB,
	userRepo *repositories.UserRepository,
	coinRepo *repositories.CoinRepository,
	sessionRepo *repositories.SessionRepository,
	messageRepo *repositories.MessageRepository,
	matchSvc *services.MatchService,
	relaySvc *services.RelayService,
	economySvc *services.EconomyService,
) *HandlerManager {
	return &HandlerManager{
		Config:      cfg,
		DB:          db,
		UserRepo:    userRepo,
		CoinRepo:    coinRepo,
		SessionRepo: sessionRepo,
		MessageRepo: messageRepo,
		MatchSvc:    matchSvc,
		RelaySvc:    relaySvc,
		EconomySvc:  economySvc,
	}
}
