package mainapp

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"f1standingsbot/pkg/apps"
	"f1standingsbot/pkg/apps/championship"
	"f1standingsbot/pkg/menus"
	"f1standingsbot/pkg/standings"
)

const (
	menuStart       = "/start"
	menuMenu        = "/menu"
	buttonStandings = championship.ButtonStandings
	appName         = "menú"
)

var (
	menuKeyboard = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonStandings),
		),
	)
)

type menuer struct{}

func (m menuer) Menu() tgbotapi.ReplyKeyboardMarkup {
	return menuKeyboard
}

type MainApp struct {
	sender    apps.Sender
	accepters []apps.Accepter
}

func NewMainApp(ctx context.Context, sender apps.Sender, src standings.Source, timeout time.Duration, seasonsPerPage int, logger zerolog.Logger) *MainApp {
	standingsAppMenu := menus.NewApplicationMenu(buttonStandings, appName, menuer{})
	standingsApp := championship.NewChampionshipApp(ctx, sender, standingsAppMenu, src, timeout, seasonsPerPage, logger)

	accepters := []apps.Accepter{standingsApp}

	return &MainApp{
		sender:    sender,
		accepters: accepters,
	}
}

func (m *MainApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	if command == menuStart {
		return true, m.renderStart()
	} else if command == menuMenu {
		return true, m.renderMenu()
	}
	for _, accepter := range m.accepters {
		accept, handler := accepter.AcceptCommand(command)
		if accept {
			return true, handler
		}
	}

	return false, nil
}

func (m *MainApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	for _, accepter := range m.accepters {
		accept, handler := accepter.AcceptCallback(query)
		if accept {
			return true, handler
		}
	}

	return false, nil
}

func (m *MainApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	for _, accepter := range m.accepters {
		accept, handler := accepter.AcceptButton(button)
		if accept {
			return true, handler
		}
	}
	return false, nil
}

func (m *MainApp) renderStart() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		message := "Hola, soy el bot de F1Champs que muestra la clasificación de pilotos de cada temporada.\n\n"
		message += "Puedes usar los siguientes comandos:\n\n"
		message += fmt.Sprintf("%s - Muestra el menú del bot\n", menuMenu)
		message += fmt.Sprintf("%s <año> - Muestra la clasificación de esa temporada\n", championship.CommandSeason)
		msg := tgbotapi.NewMessage(chatId, message)
		msg.ReplyMarkup = menuKeyboard
		_, err := m.sender.Send(msg)
		return err
	}
}

func (m *MainApp) renderMenu() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		message := "Menú del bot.\n\n"
		msg := tgbotapi.NewMessage(chatId, message)
		msg.ReplyMarkup = menuKeyboard
		_, err := m.sender.Send(msg)
		return err
	}
}
