package webserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"f1standingsbot/pkg/standings"
)

type fakeStore struct {
	mu      sync.Mutex
	seasons []standings.Season
	rows    map[standings.Season][]standings.DriverStanding
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		seasons: []standings.Season{2021, 2020},
		rows: map[standings.Season][]standings.DriverStanding{
			2021: {{Driver: "Max Verstappen", Points: 395.5}, {Driver: "Lewis Hamilton", Points: 387.5}},
			2020: {{Driver: "Lewis Hamilton", Points: 347}},
		},
	}
}

func (f *fakeStore) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStore) ListSeasons(context.Context) ([]standings.Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.seasons, nil
}

func (f *fakeStore) FetchStandings(_ context.Context, season standings.Season) ([]standings.DriverStanding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[season], nil
}

func newTestServer(t *testing.T, store Store) *httptest.Server {
	t.Helper()
	m := NewManager(":0", store, time.Second, zerolog.Nop())
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, body any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if body != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(body))
	}
	return resp.StatusCode
}

func TestSeasonsEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	var body seasonsResponse
	status := get(t, srv.URL+"/api/seasons", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []standings.Season{2021, 2020}, body.Seasons)
}

func TestStandingsEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	var body standingsResponse
	status := get(t, srv.URL+"/api/seasons/2021/standings", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, standings.Season(2021), body.Season)
	assert.Equal(t, []standings.DriverStanding{
		{Driver: "Max Verstappen", Points: 395.5},
		{Driver: "Lewis Hamilton", Points: 387.5},
	}, body.Standings)
}

func TestStandingsEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"unknown season", "/api/seasons/1900/standings", nil, http.StatusNotFound},
		{"invalid season", "/api/seasons/abc/standings", nil, http.StatusBadRequest},
		{"unreachable store", "/api/seasons/2021/standings", standings.NewError(standings.ErrConnection, "ping", errors.New("connection refused")), http.StatusServiceUnavailable},
		{"timeout", "/api/seasons/2021/standings", standings.NewError(standings.ErrTimeout, "fetch standings", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"query error", "/api/seasons", standings.NewError(standings.ErrQuery, "list seasons", errors.New("no such table: races")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.failWith(tt.err)
			srv := newTestServer(t, store)

			var body errorResponse
			status := get(t, srv.URL+tt.path, &body)

			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(t, store)

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/healthz", nil))

	store.failWith(standings.NewError(standings.ErrConnection, "ping", errors.New("connection refused")))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv.URL+"/healthz", nil))
}

type wireFrame struct {
	MessageType string          `json:"type"`
	Body        json.RawMessage `json:"body"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	return dialURL(t, srv.URL)
}

func dialURL(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, cond func(wireFrame) bool) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var frame wireFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if cond(frame) {
			return frame
		}
	}
}

func loadedSnapshot(season standings.Season) func(wireFrame) bool {
	return func(f wireFrame) bool {
		if f.MessageType != mtSnapshot {
			return false
		}
		var data SnapshotData
		if err := json.Unmarshal(f.Body, &data); err != nil {
			return false
		}
		return data.State == standings.StateLoaded && data.RowsSeason != nil && *data.RowsSeason == season
	}
}

func TestSocketSession(t *testing.T) {
	srv := newTestServer(t, newFakeStore())
	conn := dial(t, srv)

	frame := readUntil(t, conn, loadedSnapshot(2021))
	assert.Contains(t, string(frame.Body), `"Max Verstappen"`)
	assert.Contains(t, string(frame.Body), `"state":"loaded"`)

	require.NoError(t, conn.WriteJSON(Command{Action: actionSelect, Season: 2020}))
	frame = readUntil(t, conn, loadedSnapshot(2020))
	assert.Contains(t, string(frame.Body), `"points":347`)

	require.NoError(t, conn.WriteJSON(Command{Action: actionRefresh}))
	readUntil(t, conn, loadedSnapshot(2020))
}

func TestSocketCommandErrors(t *testing.T) {
	srv := newTestServer(t, newFakeStore())
	conn := dial(t, srv)
	readUntil(t, conn, loadedSnapshot(2021))

	isError := func(f wireFrame) bool { return f.MessageType == mtError }

	require.NoError(t, conn.WriteJSON(Command{Action: actionSelect, Season: 1900}))
	frame := readUntil(t, conn, isError)
	assert.Contains(t, string(frame.Body), "unknown season")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"dance"}`)))
	frame = readUntil(t, conn, isError)
	assert.Contains(t, string(frame.Body), "unknown action")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	readUntil(t, conn, isError)
}

func TestSocketUnreachableStore(t *testing.T) {
	store := newFakeStore()
	store.failWith(standings.NewError(standings.ErrConnection, "ping", errors.New("connection refused")))
	srv := newTestServer(t, store)
	conn := dial(t, srv)

	frame := readUntil(t, conn, func(f wireFrame) bool {
		return f.MessageType == mtSnapshot && strings.Contains(string(f.Body), "seasonsError")
	})

	var data SnapshotData
	require.NoError(t, json.Unmarshal(frame.Body, &data))
	assert.Empty(t, data.Seasons)
	assert.Nil(t, data.Selected)
	assert.Contains(t, data.SeasonsError, "connection error")
}

// gatedStore holds standings queries for one season until released.
type gatedStore struct {
	*fakeStore
	season  standings.Season
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) FetchStandings(ctx context.Context, season standings.Season) ([]standings.DriverStanding, error) {
	if season != g.season {
		return g.fakeStore.FetchStandings(ctx, season)
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeStore.FetchStandings(ctx, season)
}

func TestServeDrainsRequestsOnShutdown(t *testing.T) {
	store := &gatedStore{
		fakeStore: newFakeStore(),
		season:    2020,
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	m := NewManager("127.0.0.1:0", store, 5*time.Second, zerolog.Nop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- m.serve(ctx, ln) }()

	conn := dialURL(t, base)
	readUntil(t, conn, loadedSnapshot(2021))

	type reply struct {
		status int
		body   standingsResponse
		err    error
	}
	replies := make(chan reply, 1)
	go func() {
		var r reply
		resp, err := http.Get(base + "/api/seasons/2020/standings")
		if err != nil {
			r.err = err
			replies <- r
			return
		}
		defer resp.Body.Close()
		r.status = resp.StatusCode
		r.err = json.NewDecoder(resp.Body).Decode(&r.body)
		replies <- r
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("standings query never started")
	}
	cancel()

	// open sockets are closed as soon as the shutdown starts
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	close(store.release)
	select {
	case r := <-replies:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.status)
		assert.Equal(t, standings.Season(2020), r.body.Season)
		assert.Len(t, r.body.Standings, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("request was not drained")
	}

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
