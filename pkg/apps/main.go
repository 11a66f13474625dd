package apps

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const menuMenu = "/menu"

// Dispatcher routes telegram updates to the application tree rooted at root.
type Dispatcher struct {
	sender Sender
	root   Accepter
	logger zerolog.Logger
}

func NewDispatcher(sender Sender, root Accepter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		root:   root,
		logger: logger,
	}
}

// ReceiveUpdates handles updates one at a time until ctx is done or the
// channel is closed.
func (d *Dispatcher) ReceiveUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.HandleUpdate(ctx, update)
		}
	}
}

func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		d.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		d.handleCallback(ctx, update.CallbackQuery)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	user := message.From
	if user == nil || message.Chat == nil {
		return
	}
	text := message.Text
	d.logger.Debug().Int64("chat", message.Chat.ID).Str("user", user.UserName).Str("text", text).Msg("message received")

	ctx = context.WithValue(ctx, UserContextKey, user)

	var (
		accept  bool
		handler func(ctx context.Context, chatId int64) error
	)
	if message.IsCommand() {
		accept, handler = d.root.AcceptCommand(text)
		if !accept {
			handler = d.renderUnknown(text)
		}
	} else {
		accept, handler = d.root.AcceptButton(text)
		if !accept {
			return
		}
	}

	if err := handler(ctx, message.Chat.ID); err != nil {
		d.logger.Error().Err(err).Int64("chat", message.Chat.ID).Str("text", text).Msg("error handling message")
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.From != nil {
		ctx = context.WithValue(ctx, UserContextKey, query.From)
	}

	accept, handler := d.root.AcceptCallback(query)
	if accept {
		if err := handler(ctx, query); err != nil {
			d.logger.Error().Err(err).Str("data", query.Data).Msg("error handling callback")
		}
	}

	// stops the spinner on the pressed button
	if _, err := d.sender.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		d.logger.Debug().Err(err).Msg("error answering callback")
	}
}

func (d *Dispatcher) renderUnknown(command string) func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		msg := tgbotapi.NewMessage(chatId, fmt.Sprintf("No conozco el comando %s. Usa %s para ver el menú.", command, menuMenu))
		_, err := d.sender.Send(msg)
		return err
	}
}
