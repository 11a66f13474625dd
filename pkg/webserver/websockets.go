package webserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"f1standingsbot/pkg/caster"
	"f1standingsbot/pkg/standings"
)

const (
	mtSnapshot = "snapshot"
	mtError    = "error"

	actionSelect  = "select"
	actionRefresh = "refresh"
	actionSeasons = "seasons"

	writeWait = 10 * time.Second
)

// Command is a message sent by the client over /ws.
type Command struct {
	Action string           `json:"action"`
	Season standings.Season `json:"season,omitempty"`
}

// Frame is a message pushed to the client over /ws.
type Frame struct {
	MessageType string `json:"type"`
	Body        any    `json:"body,omitempty"`
}

type SnapshotData struct {
	Seq          uint64                     `json:"seq"`
	State        standings.State            `json:"state"`
	Loading      bool                       `json:"loading"`
	Seasons      []standings.Season         `json:"seasons"`
	Selected     *standings.Season          `json:"selected"`
	RowsSeason   *standings.Season          `json:"rowsSeason,omitempty"`
	Standings    []standings.DriverStanding `json:"standings"`
	Error        string                     `json:"error,omitempty"`
	SeasonsError string                     `json:"seasonsError,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}

var (
	commandCaster caster.Caster[Command] = caster.JSONCaster[Command]{Strict: true}
	frameCaster   caster.Caster[Frame]   = caster.JSONCaster[Frame]{}
)

func fromSnapshotToData(snap standings.Snapshot) SnapshotData {
	data := SnapshotData{
		Seq:       snap.Seq,
		State:     snap.State,
		Loading:   snap.Loading(),
		Seasons:   snap.Seasons,
		Standings: snap.Rows,
	}
	if data.Seasons == nil {
		data.Seasons = []standings.Season{}
	}
	if data.Standings == nil {
		data.Standings = []standings.DriverStanding{}
	}
	if snap.HasSelection {
		selected := snap.Selected
		data.Selected = &selected
	}
	if snap.State == standings.StateLoaded || snap.State == standings.StateFailed || len(snap.Rows) > 0 {
		rowsSeason := snap.RowsSeason
		data.RowsSeason = &rowsSeason
	}
	if snap.Err != nil {
		data.Error = snap.Err.Error()
	}
	if snap.SeasonsErr != nil {
		data.SeasonsError = snap.SeasonsErr.Error()
	}
	return data
}

// handleSocket runs one standings session for the lifetime of the
// connection. The session publishes snapshots under its own topic and a
// single goroutine writes them, together with command errors, to the socket.
func (m *Manager) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id := ulid.Make().String()
	logger := m.logger.With().Str("session", id).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-m.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	updates := m.ps.Subscribe(id)
	defer m.ps.Unsubscribe(id, updates)

	session := standings.NewSession(id, m.store, m.ps, m.timeout, logger)
	go func() { _ = session.Run(ctx) }()
	defer func() { <-session.Done() }()

	problems := make(chan error, 1)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writeFrames(ctx, conn, updates, problems)
	}()
	defer func() { <-writerDone }()
	// cancel runs first on the way out: it stops the writer and the session
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			logger.Debug().Msg("websocket disconnected")
			return
		}
		cmd, err := commandCaster.From(data)
		if err == nil {
			err = m.dispatch(ctx, session, cmd)
		}
		if err != nil {
			select {
			case problems <- err:
			default:
				logger.Debug().Err(err).Msg("command error dropped")
			}
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, session *standings.Session, cmd Command) error {
	switch cmd.Action {
	case actionSelect:
		return session.Select(ctx, cmd.Season)
	case actionRefresh:
		return session.Refresh(ctx)
	case actionSeasons:
		return session.ReloadSeasons(ctx)
	default:
		return errors.Errorf("unknown action %q", cmd.Action)
	}
}

func (m *Manager) writeFrames(ctx context.Context, conn *websocket.Conn, updates <-chan standings.Snapshot, problems <-chan error) {
	for {
		var frame Frame
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			// unblocks the reader when the server is shutting down
			_ = conn.Close()
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			frame = Frame{MessageType: mtSnapshot, Body: fromSnapshotToData(snap)}
		case err := <-problems:
			frame = Frame{MessageType: mtError, Body: ErrorData{Message: err.Error()}}
		}

		data, err := frameCaster.To(frame)
		if err != nil {
			m.logger.Error().Err(err).Msg("encoding frame")
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			m.logger.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}
