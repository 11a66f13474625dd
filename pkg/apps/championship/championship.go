package championship

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"f1standingsbot/pkg/apps"
	"f1standingsbot/pkg/menus"
	"f1standingsbot/pkg/pubsub"
	"f1standingsbot/pkg/standings"
)

const (
	ButtonStandings = "Clasificación"
	CommandSeason   = "/temporada"

	callbackPrefix   = "standings"
	subcommandSeason = "season"
	subcommandPage   = "page"
	callbackRefresh  = callbackPrefix + ":refresh"
	callbackSeasons  = callbackPrefix + ":seasons"
	callbackExit     = callbackPrefix + ":exit"
)

var commandSeasonRe = regexp.MustCompile(`^/temporada(?:@\w+)?(?:\s+(\S+))?\s*$`)

func callbackSeason(season standings.Season) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, subcommandSeason, season)
}

func callbackPage(page int) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, subcommandPage, page)
}

// chat is the standings view of one telegram chat: a session and the
// goroutine keeping the chat message in sync with it.
type chat struct {
	id      int64
	session *standings.Session
	updates <-chan standings.Snapshot
	cancel  context.CancelFunc

	pages  chan int
	repost chan struct{}
	exit   chan struct{}
	done   chan struct{}
}

// ChampionshipApp shows the driver standings of a season in a single
// message that is edited as the chat changes season or reloads.
type ChampionshipApp struct {
	ctx     context.Context
	sender  apps.Sender
	appMenu menus.ApplicationMenu
	src     standings.Source
	timeout time.Duration
	perPage int
	ps      *pubsub.PubSub[standings.Snapshot]
	logger  zerolog.Logger

	mu    sync.Mutex
	chats map[int64]*chat
}

// NewChampionshipApp returns the app. Chat sessions live until the user
// leaves them or ctx is done.
func NewChampionshipApp(ctx context.Context, sender apps.Sender, appMenu menus.ApplicationMenu, src standings.Source, timeout time.Duration, perPage int, logger zerolog.Logger) *ChampionshipApp {
	return &ChampionshipApp{
		ctx:     ctx,
		sender:  sender,
		appMenu: appMenu,
		src:     src,
		timeout: timeout,
		perPage: perPage,
		ps:      pubsub.NewPubSub[standings.Snapshot](),
		logger:  logger,
		chats:   make(map[int64]*chat),
	}
}

func (ca *ChampionshipApp) AcceptCommand(command string) (bool, func(ctx context.Context, chatId int64) error) {
	match := commandSeasonRe.FindStringSubmatch(strings.TrimSpace(command))
	if match == nil {
		return false, nil
	}
	if match[1] == "" {
		return true, ca.renderStandings()
	}
	return true, func(ctx context.Context, chatId int64) error {
		season, err := standings.ParseSeason(match[1])
		if err != nil {
			return ca.reply(chatId, fmt.Sprintf("%q no es una temporada. Prueba con %s 2021", match[1], CommandSeason))
		}
		return ca.selectSeason(ctx, chatId, 0, season, true)
	}
}

func (ca *ChampionshipApp) AcceptButton(button string) (bool, func(ctx context.Context, chatId int64) error) {
	if button == ButtonStandings {
		return true, ca.renderStandings()
	}
	return false, nil
}

func (ca *ChampionshipApp) AcceptCallback(query *tgbotapi.CallbackQuery) (bool, func(ctx context.Context, query *tgbotapi.CallbackQuery) error) {
	data := strings.Split(query.Data, ":")
	if data[0] != callbackPrefix || len(data) < 2 || query.Message == nil || query.Message.Chat == nil {
		return false, nil
	}
	return true, func(ctx context.Context, query *tgbotapi.CallbackQuery) error {
		chatId := query.Message.Chat.ID
		messageId := query.Message.MessageID

		switch data[1] {
		case subcommandSeason:
			if len(data) < 3 {
				return errors.Errorf("malformed callback %q", query.Data)
			}
			season, err := standings.ParseSeason(data[2])
			if err != nil {
				return err
			}
			return ca.selectSeason(ctx, chatId, messageId, season, false)

		case subcommandPage:
			if len(data) < 3 {
				return errors.Errorf("malformed callback %q", query.Data)
			}
			page, err := strconv.Atoi(data[2])
			if err != nil {
				return errors.Wrapf(err, "malformed callback %q", query.Data)
			}
			c, _ := ca.open(ctx, chatId, messageId)
			select {
			case c.pages <- page:
			case <-c.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil

		case "refresh":
			c, created := ca.open(ctx, chatId, messageId)
			if created {
				// a fresh session loads on its own
				return nil
			}
			err := c.session.Refresh(ctx)
			if errors.Is(err, standings.ErrNoSeason) {
				return nil
			}
			return err

		case "seasons":
			c, created := ca.open(ctx, chatId, messageId)
			if created {
				return nil
			}
			return c.session.ReloadSeasons(ctx)

		case "exit":
			return ca.leave(chatId, messageId)
		}
		return errors.Errorf("unknown callback %q", query.Data)
	}
}

// renderStandings posts the standings message, opening the chat session
// when there is none.
func (ca *ChampionshipApp) renderStandings() func(ctx context.Context, chatId int64) error {
	return func(ctx context.Context, chatId int64) error {
		c, created := ca.open(ctx, chatId, 0)
		if !created {
			ca.repost(ctx, c)
		}
		return nil
	}
}

// selectSeason switches the chat to season. A new chat session starts
// directly on it.
func (ca *ChampionshipApp) selectSeason(ctx context.Context, chatId int64, messageId int, season standings.Season, repost bool) error {
	c, created := ca.open(ctx, chatId, messageId, standings.WithSeason(season))
	if created {
		return nil
	}
	err := c.session.Select(ctx, season)
	if errors.Is(err, standings.ErrUnknownSeason) {
		return ca.reply(chatId, fmt.Sprintf("No hay datos de la temporada %s", season))
	}
	if err != nil {
		return err
	}
	if repost {
		ca.repost(ctx, c)
	}
	return nil
}

func (ca *ChampionshipApp) repost(ctx context.Context, c *chat) {
	select {
	case c.repost <- struct{}{}:
	case <-c.done:
	case <-ctx.Done():
	}
}

// open returns the chat session, starting it if needed. messageId is the
// message the new session edits; 0 posts a new one.
func (ca *ChampionshipApp) open(ctx context.Context, chatId int64, messageId int, opts ...standings.SessionOption) (*chat, bool) {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	if c, ok := ca.chats[chatId]; ok {
		return c, false
	}

	logger := ca.logger.With().Int64("chat", chatId).Logger()
	if user, ok := apps.UserFrom(ctx); ok {
		logger = logger.With().Str("user", user.UserName).Logger()
	}

	sessionCtx, cancel := context.WithCancel(ca.ctx)
	topic := strconv.FormatInt(chatId, 10)
	c := &chat{
		id:      chatId,
		updates: ca.ps.Subscribe(topic),
		cancel:  cancel,
		pages:   make(chan int, 1),
		repost:  make(chan struct{}, 1),
		exit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.session = standings.NewSession(topic, ca.src, ca.ps, ca.timeout, logger, opts...)
	ca.chats[chatId] = c

	go func() { _ = c.session.Run(sessionCtx) }()
	go ca.sync(sessionCtx, c, messageId)

	logger.Debug().Msg("standings session opened")
	return c, true
}

// leave stops the chat session and takes the keyboard off its message.
func (ca *ChampionshipApp) leave(chatId int64, messageId int) error {
	ca.mu.Lock()
	c, ok := ca.chats[chatId]
	delete(ca.chats, chatId)
	ca.mu.Unlock()

	if ok {
		close(c.exit)
		<-c.done
		c.cancel()
		<-c.session.Done()
		ca.ps.Close(c.session.ID())
		ca.logger.Debug().Int64("chat", chatId).Msg("standings session closed")
	} else {
		ca.removeKeyboard(chatId, messageId)
	}

	msg := tgbotapi.NewMessage(chatId, "Hasta la próxima")
	msg.ReplyMarkup = ca.appMenu.PrevMenu()
	_, err := ca.sender.Send(msg)
	return err
}

// sync keeps the chat message showing the latest snapshot. It is the only
// writer of the message.
func (ca *ChampionshipApp) sync(ctx context.Context, c *chat, messageId int) {
	defer close(c.done)

	var (
		snap   standings.Snapshot
		have   bool
		page   int
		paging bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.exit:
			if messageId != 0 {
				ca.removeKeyboard(c.id, messageId)
			}
			return
		case s, ok := <-c.updates:
			if !ok {
				return
			}
			if !have || s.Selected != snap.Selected {
				paging = false
			}
			snap, have = s, true
		case p := <-c.pages:
			page, paging = p, true
		case <-c.repost:
			messageId = 0
		}
		if !have {
			continue
		}
		if !paging {
			page = pageOfSelection(snap, ca.perPage)
		}
		messageId, page = ca.show(c.id, messageId, snap, page)
	}
}

func (ca *ChampionshipApp) show(chatId int64, messageId int, snap standings.Snapshot, page int) (int, int) {
	keyboard, page := renderKeyboard(snap, page, ca.perPage)
	text := renderText(snap)

	if messageId == 0 {
		msg := tgbotapi.NewMessage(chatId, text)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		msg.ReplyMarkup = keyboard
		sent, err := ca.sender.Send(msg)
		if err != nil {
			ca.logger.Error().Err(err).Int64("chat", chatId).Msg("error sending standings")
			return 0, page
		}
		return sent.MessageID, page
	}

	msg := tgbotapi.NewEditMessageText(chatId, messageId, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyMarkup = &keyboard
	if _, err := ca.sender.Send(msg); err != nil && !notModified(err) {
		ca.logger.Error().Err(err).Int64("chat", chatId).Msg("error updating standings")
	}
	return messageId, page
}

func (ca *ChampionshipApp) removeKeyboard(chatId int64, messageId int) {
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := ca.sender.Send(tgbotapi.NewEditMessageReplyMarkup(chatId, messageId, empty)); err != nil && !notModified(err) {
		ca.logger.Debug().Err(err).Int64("chat", chatId).Msg("error removing keyboard")
	}
}

func (ca *ChampionshipApp) reply(chatId int64, text string) error {
	_, err := ca.sender.Send(tgbotapi.NewMessage(chatId, text))
	return err
}

// telegram rejects edits that leave a message as it was
func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}
