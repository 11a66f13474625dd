package menus

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Menuer is anything offering a reply keyboard to go back to.
type Menuer interface {
	Menu() tgbotapi.ReplyKeyboardMarkup
}

type ApplicationMenu struct {
	Name   string
	From   string
	menuer Menuer
}

func NewApplicationMenu(name, from string, menuer Menuer) ApplicationMenu {
	return ApplicationMenu{
		Name:   name,
		From:   from,
		menuer: menuer,
	}
}

// PrevMenu is the keyboard of the menu the application was opened from.
func (am ApplicationMenu) PrevMenu() tgbotapi.ReplyKeyboardMarkup {
	return am.menuer.Menu()
}
