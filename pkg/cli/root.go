package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"f1standingsbot/pkg/config"
)

// env is what every subcommand runs with once the root has loaded it.
type env struct {
	cfg    config.Config
	logger zerolog.Logger
	closer io.Closer
}

// run wraps a subcommand so the log file is closed once it returns, failed
// or not. Cobra skips post-run hooks after an error.
func (e *env) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := e.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (e *env) close() error {
	if e.closer == nil {
		return nil
	}
	c := e.closer
	e.closer = nil
	return c.Close()
}

// NewRootCmd creates the f1standings command with the tui, bot, web and
// serve subcommands.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command reading the environment
// through lookupEnv.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	e := &env{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "f1standings",
		Short:         "F1 driver standings by season",
		Long:          "f1standings shows the drivers championship of every season in a terminal, a Telegram bot or over HTTP.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")

			cfg, err := config.Load(path, lookupEnv)
			if err != nil {
				return err
			}
			// the terminal UI owns the screen, logs only go to the log file
			consoleOff := cmd.Name() == "tui"
			logger, closer, err := config.NewLogger(cfg.Logging, debug, consoleOff)
			if err != nil {
				return err
			}
			e.cfg, e.logger, e.closer = cfg, logger, closer
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "path of the YAML configuration file (default "+config.DefaultPath+" if present)")
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.AddCommand(newTUICmd(e), newBotCmd(e), newWebCmd(e), newServeCmd(e))

	return cmd
}

const rootCmdExample = `  # Browse the standings in the terminal using ./f1.db
  f1standings tui

  # Read a PostgreSQL database instead
  F1STANDINGS_DB_DRIVER=postgres F1STANDINGS_DB_HOST=localhost F1STANDINGS_DB_USER=f1 f1standings tui

  # Run the Telegram bot
  TELEGRAM_TOKEN=... f1standings bot

  # Serve the JSON API and the live websocket on :8080
  f1standings web

  # Run the bot and the web server together
  f1standings serve --config f1standings.yaml`
