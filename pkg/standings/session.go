package standings

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"f1standingsbot/pkg/pubsub"
)

const sessionEventBuffer = 16

// Session runs a Controller on its own goroutine for surfaces that receive
// input concurrently (one Telegram chat, one websocket connection). Workers
// post their results back to that goroutine and every applied change is
// published on the session topic.
type Session struct {
	id      string
	src     Source
	timeout time.Duration
	ps      *pubsub.PubSub[Snapshot]
	logger  zerolog.Logger

	preferred    Season
	hasPreferred bool

	ctrl   *Controller
	events chan func()
	done   chan struct{}
}

type SessionOption func(*Session)

// WithSeason selects season instead of the most recent one once the season
// list is loaded, if it is listed.
func WithSeason(season Season) SessionOption {
	return func(s *Session) {
		s.preferred = season
		s.hasPreferred = true
	}
}

// NewSession prepares a session publishing to ps under topic id. Nothing
// happens until Run is called.
func NewSession(id string, src Source, ps *pubsub.PubSub[Snapshot], timeout time.Duration, logger zerolog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		id:      id,
		src:     src,
		timeout: timeout,
		ps:      ps,
		logger:  logger.With().Str("session", id).Logger(),
		events:  make(chan func(), sessionEventBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Run loads the season selector, then processes events until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.ctrl = NewController(ctx)
	defer s.ctrl.Close()
	if s.hasPreferred {
		s.ctrl.Prefer(s.preferred)
	}

	s.startSeasons(s.ctrl.ReloadSeasons())
	s.publish()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("session stopped")
			return nil
		case ev := <-s.events:
			ev()
		}
	}
}

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Select switches the session to season and starts reloading it.
func (s *Session) Select(ctx context.Context, season Season) error {
	return s.call(ctx, func() error {
		req, err := s.ctrl.Select(season)
		if err != nil {
			return err
		}
		s.start(req)
		s.publish()
		return nil
	})
}

// Refresh reloads the selected season.
func (s *Session) Refresh(ctx context.Context) error {
	return s.call(ctx, func() error {
		req, ok := s.ctrl.Refresh()
		if !ok {
			return NewError(ErrNoSeason, "refresh", nil)
		}
		s.start(req)
		s.publish()
		return nil
	})
}

// ReloadSeasons reloads the season selector.
func (s *Session) ReloadSeasons(ctx context.Context) error {
	return s.call(ctx, func() error {
		s.startSeasons(s.ctrl.ReloadSeasons())
		s.publish()
		return nil
	})
}

// Snapshot returns the current display state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.call(ctx, func() error {
		snap = s.ctrl.Snapshot()
		return nil
	})
	return snap, err
}

// call runs fn on the session goroutine and waits for its error.
func (s *Session) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	if err := s.post(ctx, func() { errc <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return NewError(ErrSessionClosed, "call", nil)
	}
}

func (s *Session) post(ctx context.Context, ev func()) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return NewError(ErrSessionClosed, "post", nil)
	}
}

func (s *Session) start(req Request) {
	s.logger.Debug().Uint64("seq", req.Seq).Stringer("season", req.Season).Msg("reload started")
	go func() {
		res := req.Execute(s.src, s.timeout)
		_ = s.post(context.Background(), func() {
			if !s.ctrl.Complete(res) {
				s.logger.Debug().Uint64("seq", res.Seq).Uint64("latest", s.ctrl.Seq()).Msg("stale reload discarded")
				return
			}
			if res.Err != nil {
				s.logger.Warn().Err(res.Err).Stringer("season", res.Season).Msg("reload failed")
			}
			s.publish()
		})
	}()
}

func (s *Session) startSeasons(req SeasonsRequest) {
	go func() {
		res := req.Execute(s.src, s.timeout)
		_ = s.post(context.Background(), func() {
			next, ok := s.ctrl.SeasonsLoaded(res)
			if res.Err != nil && res.Seq == s.ctrl.listSeq {
				s.logger.Error().Err(res.Err).Msg("could not list seasons")
			}
			if ok {
				s.start(next)
			}
			s.publish()
		})
	}()
}

func (s *Session) publish() {
	// nobody to deliver to, skip copying the rows
	if s.ps.Subscribers(s.id) == 0 {
		return
	}
	s.ps.Publish(s.id, s.ctrl.Snapshot())
}
