package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"f1standingsbot/pkg/helper"
	"f1standingsbot/pkg/standings"
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// lines used by title, selector, status and help around the table
	chromeHeight = 8

	keyQuit    = "q"
	keyCtrlC   = "ctrl+c"
	keyEsc     = "esc"
	keyRefresh = "r"
	keySeasons = "s"
	keyLeft    = "left"
	keyRight   = "right"
	keyH       = "h"
	keyL       = "l"
)

// seasonsLoadedMsg carries the result of a season list load.
type seasonsLoadedMsg struct {
	res standings.SeasonsResult
}

// standingsLoadedMsg carries the result of one table reload.
type standingsLoadedMsg struct {
	res standings.Result
}

// Model is the Bubble Tea model of the standings screen. The bubbletea
// runtime is the only goroutine touching the controller; reloads run as
// commands and come back as messages tagged with their request id.
//
//nolint:recvcheck // Bubble Tea requires value receivers for Init/Update/View.
type Model struct {
	ctrl    *standings.Controller
	src     standings.Source
	timeout time.Duration
	logger  zerolog.Logger

	snap    standings.Snapshot
	table   table.Model
	spinner spinner.Model

	width    int
	height   int
	quitting bool
}

// New returns the standings screen reading from src. Requests are cancelled
// when ctx is done.
func New(ctx context.Context, src standings.Source, timeout time.Duration, logger zerolog.Logger) Model {
	ctrl := standings.NewController(ctx)
	m := Model{
		ctrl:    ctrl,
		src:     src,
		timeout: timeout,
		logger:  logger,
		snap:    ctrl.Snapshot(),
		spinner: newSpinner(),
		width:   defaultWidth,
		height:  defaultHeight,
	}
	m.table = m.buildTable()
	return m
}

// Init starts the spinner and the first season list load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadSeasons())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = m.buildTable()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case seasonsLoadedMsg:
		return m.handleSeasonsLoaded(msg)

	case standingsLoadedMsg:
		return m.handleStandingsLoaded(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyQuit, keyCtrlC, keyEsc:
		m.quitting = true
		m.ctrl.Close()
		return m, tea.Quit
	case keyRight, keyL:
		return m.step(1)
	case keyLeft, keyH:
		return m.step(-1)
	case keyRefresh:
		req, ok := m.ctrl.Refresh()
		if !ok {
			return m, nil
		}
		return m.sync(), m.fetch(req)
	case keySeasons:
		cmd := m.loadSeasons()
		return m.sync(), cmd
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// step moves the selector by delta seasons and reloads.
func (m Model) step(delta int) (tea.Model, tea.Cmd) {
	season, ok := m.ctrl.Next(delta)
	if !ok {
		return m, nil
	}
	req, err := m.ctrl.Select(season)
	if err != nil {
		m.logger.Warn().Err(err).Stringer("season", season).Msg("selection rejected")
		return m, nil
	}
	return m.sync(), m.fetch(req)
}

func (m Model) handleSeasonsLoaded(msg seasonsLoadedMsg) (tea.Model, tea.Cmd) {
	req, ok := m.ctrl.SeasonsLoaded(msg.res)
	if msg.res.Err != nil {
		m.logger.Error().Err(msg.res.Err).Msg("could not list seasons")
	}
	m = m.sync()
	if !ok {
		return m, nil
	}
	return m, m.fetch(req)
}

func (m Model) handleStandingsLoaded(msg standingsLoadedMsg) (tea.Model, tea.Cmd) {
	if !m.ctrl.Complete(msg.res) {
		m.logger.Debug().Uint64("seq", msg.res.Seq).Uint64("latest", m.ctrl.Seq()).Msg("stale reload discarded")
		return m, nil
	}
	if msg.res.Err != nil {
		m.logger.Warn().Err(msg.res.Err).Stringer("season", msg.res.Season).Msg("reload failed")
	}
	return m.sync(), nil
}

// sync copies the controller state into the view.
func (m Model) sync() Model {
	m.snap = m.ctrl.Snapshot()
	m.table.SetRows(m.tableRows())
	return m
}

func (m Model) loadSeasons() tea.Cmd {
	req := m.ctrl.ReloadSeasons()
	src, timeout := m.src, m.timeout
	return func() tea.Msg {
		return seasonsLoadedMsg{res: req.Execute(src, timeout)}
	}
}

func (m Model) fetch(req standings.Request) tea.Cmd {
	m.logger.Debug().Uint64("seq", req.Seq).Stringer("season", req.Season).Msg("reload started")
	src, timeout := m.src, m.timeout
	return func() tea.Msg {
		return standingsLoadedMsg{res: req.Execute(src, timeout)}
	}
}

func (m Model) buildTable() table.Model {
	driverWidth, pointsWidth := columnWidths(m.width)
	height := m.height - chromeHeight
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: center("Driver", driverWidth), Width: driverWidth},
			{Title: center("Points", pointsWidth), Width: pointsWidth},
		}),
		table.WithRows(m.tableRows()),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	t.SetStyles(tableStyles())
	return t
}

func (m Model) tableRows() []table.Row {
	driverWidth, pointsWidth := columnWidths(m.width)
	rows := make([]table.Row, 0, len(m.snap.Rows))
	for _, r := range m.snap.Rows {
		rows = append(rows, table.Row{
			center(r.Driver, driverWidth),
			center(helper.FormatPoints(r.Points), pointsWidth),
		})
	}
	return rows
}

func columnWidths(width int) (int, int) {
	usable := width - 6
	if usable < 30 {
		usable = 30
	}
	points := usable / 3
	return usable - points, points
}

// Run shows the standings screen until the user exits or ctx is done.
func Run(ctx context.Context, src standings.Source, timeout time.Duration, logger zerolog.Logger) error {
	p := tea.NewProgram(New(ctx, src, timeout, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
