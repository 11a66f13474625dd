package store

import (
	"context"
	"database/sql/driver"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"f1standingsbot/pkg/standings"
)

// PostgreSQL error classes that mean the session itself is unusable:
// connection exceptions, invalid authorization, invalid catalog name and
// operator intervention (shutdown).
var pgConnectionClasses = map[string]bool{
	"08": true,
	"28": true,
	"3D": true,
	"57": true,
}

// classifyError turns a driver error into a standings.Error of the right kind.
func classifyError(ctx context.Context, op string, err error) error {
	return standings.NewError(errorKind(ctx, err), op, err)
}

func errorKind(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return standings.ErrTimeout
	}
	if errors.Is(err, driver.ErrBadConn) {
		return standings.ErrConnection
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return standings.ErrConnection
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgConnectionClasses[pgErr.Code[:2]] {
		return standings.ErrConnection
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrPerm, sqlite3.ErrAuth:
			return standings.ErrConnection
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return standings.ErrTimeout
		}
		return standings.ErrConnection
	}
	return standings.ErrQuery
}
