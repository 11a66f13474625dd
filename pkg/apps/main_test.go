package apps

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.sent = append(r.sent, c)
	return tgbotapi.Message{MessageID: len(r.sent)}, nil
}

func (r *recordingSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r.requests = append(r.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type recordingApp struct {
	commands  []string
	buttons   []string
	callbacks []string
	chats     []int64
	users     []*tgbotapi.User
}

func (a *recordingApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	if command != "/known" {
		return false, nil
	}
	return true, func(ctx context.Context, chatId int64) error {
		a.commands = append(a.commands, command)
		a.chats = append(a.chats, chatId)
		if user, ok := UserFrom(ctx); ok {
			a.users = append(a.users, user)
		}
		return nil
	}
}

func (a *recordingApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	if button != "Clasificación" {
		return false, nil
	}
	return true, func(ctx context.Context, chatId int64) error {
		a.buttons = append(a.buttons, button)
		return nil
	}
}

func (a *recordingApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	return true, func(ctx context.Context, query *tgbotapi.CallbackQuery) error {
		a.callbacks = append(a.callbacks, query.Data)
		return errors.New("handler failure is only logged")
	}
}

func command(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		From:     &tgbotapi.User{ID: 7, UserName: "checo"},
		Chat:     &tgbotapi.Chat{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func text(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: 7},
		Chat: &tgbotapi.Chat{ID: 42},
	}}
}

func TestDispatchCommand(t *testing.T) {
	app, sender := &recordingApp{}, &recordingSender{}
	d := NewDispatcher(sender, app, zerolog.Nop())

	d.HandleUpdate(context.Background(), command("/known"))

	assert.Equal(t, []string{"/known"}, app.commands)
	assert.Equal(t, []int64{42}, app.chats)
	require.Len(t, app.users, 1)
	assert.Equal(t, "checo", app.users[0].UserName)
	assert.Empty(t, sender.sent)
}

func TestDispatchUnknownCommand(t *testing.T) {
	app, sender := &recordingApp{}, &recordingSender{}
	d := NewDispatcher(sender, app, zerolog.Nop())

	d.HandleUpdate(context.Background(), command("/circuitos"))

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "/circuitos")
	assert.Contains(t, msg.Text, "/menu")
}

func TestDispatchButtons(t *testing.T) {
	app, sender := &recordingApp{}, &recordingSender{}
	d := NewDispatcher(sender, app, zerolog.Nop())

	d.HandleUpdate(context.Background(), text("Clasificación"))
	d.HandleUpdate(context.Background(), text("hola"))

	assert.Equal(t, []string{"Clasificación"}, app.buttons)
	assert.Empty(t, sender.sent, "plain text is ignored")
}

func TestDispatchCallbackIsAnswered(t *testing.T) {
	app, sender := &recordingApp{}, &recordingSender{}
	d := NewDispatcher(sender, app, zerolog.Nop())

	d.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    "standings:refresh",
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 42}},
	}})

	assert.Equal(t, []string{"standings:refresh"}, app.callbacks)
	require.Len(t, sender.requests, 1)
	answer, ok := sender.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-1", answer.CallbackQueryID)
}

func TestReceiveUpdatesStopsOnClose(t *testing.T) {
	app, sender := &recordingApp{}, &recordingSender{}
	d := NewDispatcher(sender, app, zerolog.Nop())

	updates := make(chan tgbotapi.Update, 2)
	updates <- command("/known")
	updates <- text("Clasificación")
	close(updates)

	d.ReceiveUpdates(context.Background(), updates)

	assert.Len(t, app.commands, 1)
	assert.Len(t, app.buttons, 1)
}

func TestUserFrom(t *testing.T) {
	_, ok := UserFrom(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), UserContextKey, &tgbotapi.User{UserName: "checo"})
	user, ok := UserFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "checo", user.UserName)
}
