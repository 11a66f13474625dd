package webserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"f1standingsbot/pkg/standings"
)

type seasonsResponse struct {
	Seasons []standings.Season `json:"seasons"`
}

type standingsResponse struct {
	Season    standings.Season           `json:"season"`
	Standings []standings.DriverStanding `json:"standings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := m.queryContext(r.Context())
	defer cancel()

	if err := m.store.Ping(ctx); err != nil {
		m.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Manager) handleSeasons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := m.queryContext(r.Context())
	defer cancel()

	seasons, err := m.store.ListSeasons(ctx)
	if err != nil {
		m.writeError(w, err)
		return
	}
	if seasons == nil {
		seasons = []standings.Season{}
	}
	writeJSON(w, http.StatusOK, seasonsResponse{Seasons: seasons})
}

func (m *Manager) handleStandings(w http.ResponseWriter, r *http.Request) {
	season, err := standings.ParseSeason(mux.Vars(r)["season"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := m.queryContext(r.Context())
	defer cancel()

	seasons, err := m.store.ListSeasons(ctx)
	if err != nil {
		m.writeError(w, err)
		return
	}
	known := false
	for _, s := range seasons {
		if s == season {
			known = true
			break
		}
	}
	if !known {
		m.writeError(w, standings.NewError(standings.ErrUnknownSeason, "fetch standings", errors.Errorf("season %s", season)))
		return
	}

	rows, err := m.store.FetchStandings(ctx, season)
	if err != nil {
		m.writeError(w, err)
		return
	}
	if rows == nil {
		rows = []standings.DriverStanding{}
	}
	writeJSON(w, http.StatusOK, standingsResponse{Season: season, Standings: rows})
}

func (m *Manager) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(ctx, m.timeout)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		m.logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, standings.ErrUnknownSeason):
		return http.StatusNotFound
	case errors.Is(err, standings.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, standings.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
