package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button labels
const (
	BtnSearchAny     = "🎲 چت شانسی"
	BtnSearchMale    = "🙍‍♂️ چت با پسر"
	BtnSearchFemale  = "🙎‍♀️ چت با دختر"
	BtnBalance       = "💰 موجودی"
	BtnCancel        = "❌ لغو"
	BtnEndChat       = "🔚 پایان چت"
	BtnSafeModeOn    = "🛡 حالت امن: روشن"
	BtnSafeModeOff   = "🛡 حالت امن: خاموش"
	BtnDeleteHistory = "🗑 حذف تاریخچه چت"
	BtnMale          = "🙍‍♂️ پسر"
	BtnFemale        = "🙎‍♀️ دختر"
)

func MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnSearchAny),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnSearchMale),
			tgbotapi.NewKeyboardButton(BtnSearchFemale),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnBalance),
		),
	)
}

// ChatKeyboard is shown while the user is in an active chat. The safe-mode
// button reflects the caller's own flag.
func ChatKeyboard(safeModeEnabled bool) tgbotapi.ReplyKeyboardMarkup {
	safeBtn := BtnSafeModeOff
	if safeModeEnabled {
		safeBtn = BtnSafeModeOn
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(safeBtn),
			tgbotapi.NewKeyboardButton(BtnDeleteHistory),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnEndChat),
		),
	)
}

func GenderKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(BtnMale),
			tgbotapi.NewKeyboardButton(BtnFemale),
		),
	)
}

// SearchingKeyboard is the inline cancel button under the "searching"
// message.
func SearchingKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnCancel, "search:cancel"),
		),
	)
}
