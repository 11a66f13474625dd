package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	// database/sql drivers for the supported stores
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"f1standingsbot/pkg/config"
	"f1standingsbot/pkg/standings"
)

// sql.Open names of the supported drivers.
var driverNames = map[string]string{
	config.DriverPostgres: "pgx",
	config.DriverSQLite:   "sqlite3",
}

// Manager is the read-only adapter over the results database. It owns the
// connection pool for the lifetime of the process; the pool is safe for the
// concurrent reloads of several sessions.
type Manager struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewManager opens the pool described by cfg and checks the store answers.
// An unreachable store is reported as standings.ErrConnection.
func NewManager(ctx context.Context, cfg config.Database, logger zerolog.Logger) (*Manager, error) {
	m, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := m.Ping(ctx); err != nil {
		_ = m.Close()
		logger.Error().Err(err).Str("dsn", cfg.Redacted()).Msg("error opening database")
		return nil, err
	}
	logger.Info().Str("driver", cfg.Driver).Str("dsn", cfg.Redacted()).Msg("connected to database")
	return m, nil
}

// Open prepares the pool described by cfg without connecting. Connections
// are made by the first query, so a store that is down at startup can still
// be served once it comes back.
func Open(cfg config.Database, logger zerolog.Logger) (*Manager, error) {
	name, ok := driverNames[cfg.Driver]
	if !ok {
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(name, cfg.DataSourceName())
	if err != nil {
		return nil, standings.NewError(standings.ErrConnection, "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	return NewManagerFromDB(db, logger), nil
}

// NewManagerFromDB wraps an already opened pool.
func NewManagerFromDB(db *sql.DB, logger zerolog.Logger) *Manager {
	return &Manager{
		db:     db,
		logger: logger,
	}
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// Ping checks the store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return classifyError(ctx, "ping", err)
	}
	return nil
}

func (m *Manager) ListSeasons(ctx context.Context) ([]standings.Season, error) {
	query, read := buildSelectSeasonsCommand()
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyError(ctx, "list seasons", err)
	}
	seasons, err := read(rows)
	if err != nil {
		return nil, classifyError(ctx, "list seasons", err)
	}
	m.logger.Debug().Int("seasons", len(seasons)).Msg("seasons listed")
	return seasons, nil
}

func (m *Manager) FetchStandings(ctx context.Context, season standings.Season) ([]standings.DriverStanding, error) {
	query, args, read := buildSelectStandingsCommand(season)
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(ctx, "fetch standings", err)
	}
	table, err := read(rows)
	if err != nil {
		return nil, classifyError(ctx, "fetch standings", err)
	}
	m.logger.Debug().Stringer("season", season).Int("drivers", len(table)).Msg("standings fetched")
	return table, nil
}
