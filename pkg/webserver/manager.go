package webserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"f1standingsbot/pkg/pubsub"
	"f1standingsbot/pkg/standings"
)

const shutdownTimeout = 10 * time.Second

// Store is what the web surface reads from.
type Store interface {
	standings.Source
	Ping(ctx context.Context) error
}

type Manager struct {
	r        *mux.Router
	addr     string
	store    Store
	timeout  time.Duration
	ps       *pubsub.PubSub[standings.Snapshot]
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	// closed when the server starts shutting down; hijacked sockets are
	// not tracked by http.Server.Shutdown
	closing   chan struct{}
	closeOnce sync.Once
}

// NewManager builds the router serving the JSON API and the live socket.
// timeout bounds every store query.
func NewManager(addr string, store Store, timeout time.Duration, logger zerolog.Logger) *Manager {
	m := &Manager{
		r:       mux.NewRouter(),
		addr:    addr,
		store:   store,
		timeout: timeout,
		ps:      pubsub.NewPubSub[standings.Snapshot](),
		logger:  logger,
		closing: make(chan struct{}),
	}
	m.rootHandlers()
	return m
}

func (m *Manager) rootHandlers() {
	m.r.HandleFunc("/healthz", m.handleHealth).Methods(http.MethodGet)
	m.r.HandleFunc("/ws", m.handleSocket).Methods(http.MethodGet)

	api := m.r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/seasons", m.handleSeasons).Methods(http.MethodGet)
	api.HandleFunc("/seasons/{season}/standings", m.handleStandings).Methods(http.MethodGet)
}

// Handler returns the router, for tests and embedding.
func (m *Manager) Handler() http.Handler {
	return m.r
}

// Serve listens until ctx is done and then shuts the server down, giving
// open requests some time to finish.
func (m *Manager) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return errors.Wrap(err, "webserver")
	}
	return m.serve(ctx, ln)
}

func (m *Manager) serve(ctx context.Context, ln net.Listener) error {
	// requests outlive ctx so Shutdown can drain them
	base := context.WithoutCancel(ctx)
	srv := &http.Server{
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
		Handler:      m.r,
		BaseContext:  func(_ net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(m.closeSockets)

	errc := make(chan error, 1)
	go func() {
		m.logger.Info().Str("address", ln.Addr().String()).Msg("webserver listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "webserver")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	m.logger.Info().Msg("webserver shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "webserver shutdown")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "webserver")
	}
	return nil
}

func (m *Manager) closeSockets() {
	m.closeOnce.Do(func() { close(m.closing) })
}
