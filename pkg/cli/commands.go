package cli

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"f1standingsbot/pkg/apps"
	"f1standingsbot/pkg/apps/mainapp"
	"f1standingsbot/pkg/config"
	"f1standingsbot/pkg/standings"
	"f1standingsbot/pkg/store"
	"f1standingsbot/pkg/tui"
	"f1standingsbot/pkg/webserver"
)

func newTUICmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse the standings in the terminal",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, e)
			if err != nil {
				return err
			}
			defer st.Close()

			return tui.Run(ctx, st, e.cfg.Database.QueryTimeout, config.Component(e.logger, "tui"))
		}),
	}
}

func newBotCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Telegram.Token == "" {
				return errors.New("telegram token missing: set TELEGRAM_TOKEN or telegram.token")
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, e)
			if err != nil {
				return err
			}
			defer st.Close()

			return runBot(ctx, e, st)
		}),
	}
}

func newWebCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Serve the JSON API and the live websocket",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, e)
			if err != nil {
				return err
			}
			defer st.Close()

			return runWeb(ctx, e, st)
		}),
	}
}

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the web server together",
		Args:  cobra.NoArgs,
		RunE: e.run(func(cmd *cobra.Command, _ []string) error {
			if e.cfg.Telegram.Token == "" {
				return errors.New("telegram token missing: set TELEGRAM_TOKEN or telegram.token")
			}
			st, err := openStore(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer st.Close()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return runBot(ctx, e, st) })
			g.Go(func() error { return runWeb(ctx, e, st) })
			return g.Wait()
		}),
	}
}

// openStore prepares the database pool. A store that cannot be reached yet
// is not fatal: every surface reports the connection error and retries on
// the next load.
func openStore(ctx context.Context, e *env) (*store.Manager, error) {
	logger := config.Component(e.logger, "store")
	st, err := store.Open(e.cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.cfg.Database.QueryTimeout > 0 {
		pingCtx, cancel = context.WithTimeout(ctx, e.cfg.Database.QueryTimeout)
	}
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("dsn", e.cfg.Database.Redacted()).Msg("database unreachable")
		return st, nil
	}
	logger.Info().Str("driver", e.cfg.Database.Driver).Str("dsn", e.cfg.Database.Redacted()).Msg("connected to database")
	return st, nil
}

func runBot(ctx context.Context, e *env, src standings.Source) error {
	logger := config.Component(e.logger, "bot")

	bot, err := tgbotapi.NewBotAPI(e.cfg.Telegram.Token)
	if err != nil {
		return errors.Wrap(err, "connecting to telegram")
	}
	bot.Debug = e.cfg.Telegram.Debug
	logger.Info().Str("account", bot.Self.UserName).Msg("authorized on telegram")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()

	root := mainapp.NewMainApp(ctx, bot, src, e.cfg.Database.QueryTimeout, e.cfg.Telegram.SeasonsPerPage, logger)
	logger.Info().Msg("start listening for updates")
	apps.NewDispatcher(bot, root, logger).ReceiveUpdates(ctx, updates)
	return nil
}

func runWeb(ctx context.Context, e *env, st webserver.Store) error {
	m := webserver.NewManager(e.cfg.Web.Address, st, e.cfg.Database.QueryTimeout, config.Component(e.logger, "webserver"))
	return m.Serve(ctx)
}
