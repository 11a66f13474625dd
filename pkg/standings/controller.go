package standings

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// State of the standings table of a Controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots travel as JSON with readable states.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateLoading, StateLoaded, StateFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return errors.Errorf("unknown state %q", text)
}

// Request is one reload of the standings table. Seq grows with every request
// a Controller issues; only the result of the latest one is ever applied.
type Request struct {
	Seq    uint64
	Season Season
	ctx    context.Context
}

// Result is what a worker hands back to the Controller for a Request.
type Result struct {
	Seq    uint64
	Season Season
	Rows   []DriverStanding
	Err    error
}

// Execute runs the request against src. It is meant to run on a worker
// goroutine; a timeout <= 0 means no deadline besides cancellation.
func (r Request) Execute(src Source, timeout time.Duration) Result {
	ctx, cancel := requestContext(r.ctx, timeout)
	defer cancel()

	rows, err := src.FetchStandings(ctx, r.Season)
	if err != nil {
		return Result{Seq: r.Seq, Season: r.Season, Err: classify("fetch standings", err)}
	}
	if rows == nil {
		rows = []DriverStanding{}
	}
	return Result{Seq: r.Seq, Season: r.Season, Rows: rows}
}

// SeasonsRequest is one load of the season selector.
type SeasonsRequest struct {
	Seq uint64
	ctx context.Context
}

type SeasonsResult struct {
	Seq     uint64
	Seasons []Season
	Err     error
}

func (r SeasonsRequest) Execute(src Source, timeout time.Duration) SeasonsResult {
	ctx, cancel := requestContext(r.ctx, timeout)
	defer cancel()

	seasons, err := src.ListSeasons(ctx)
	if err != nil {
		return SeasonsResult{Seq: r.Seq, Err: classify("list seasons", err)}
	}
	return SeasonsResult{Seq: r.Seq, Seasons: seasons}
}

func requestContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// Snapshot is the display state of a Controller at one point in time.
type Snapshot struct {
	Seq            uint64
	State          State
	Seasons        []Season
	Selected       Season
	HasSelection   bool
	ListingSeasons bool
	// RowsSeason is the season Rows belong to. It differs from Selected
	// while a reload for a new selection is in flight or after it failed.
	RowsSeason Season
	Rows       []DriverStanding
	Err        error
	SeasonsErr error
}

// Loading reports whether a reload is in flight.
func (s Snapshot) Loading() bool {
	return s.State == StateLoading
}

// Controller holds the selected season and sequences reloads of its table.
//
// A Controller is not safe for concurrent use: every method must be called
// from the one goroutine that owns the display state (the bubbletea runtime or
// a Session). Only Request.Execute and SeasonsRequest.Execute run elsewhere.
type Controller struct {
	ctx context.Context

	seasons      []Season
	seasonsErr   error
	listSeq      uint64
	listing      bool
	selected     Season
	hasSelection bool
	preferred    Season
	hasPreferred bool

	state      State
	rows       []DriverStanding
	rowsSeason Season
	err        error

	seq    uint64
	cancel context.CancelFunc
}

// NewController returns an idle controller. Requests it issues are derived
// from ctx and are cancelled with it.
func NewController(ctx context.Context) *Controller {
	return &Controller{ctx: ctx, state: StateIdle}
}

// ReloadSeasons issues a load of the season selector.
func (c *Controller) ReloadSeasons() SeasonsRequest {
	c.listSeq++
	c.listing = true
	return SeasonsRequest{Seq: c.listSeq, ctx: c.ctx}
}

// SeasonsLoaded applies a season list. When the current selection is no
// longer listed the most recent season becomes the selection and a reload for
// it is returned. Stale or failed lists leave the selector as it was.
func (c *Controller) SeasonsLoaded(res SeasonsResult) (Request, bool) {
	if res.Seq != c.listSeq {
		return Request{}, false
	}
	c.listing = false
	if res.Err != nil {
		c.seasonsErr = res.Err
		return Request{}, false
	}
	c.seasonsErr = nil
	c.seasons = append([]Season(nil), res.Seasons...)

	if c.hasPreferred {
		c.hasPreferred = false
		if containsSeason(c.seasons, c.preferred) && (!c.hasSelection || c.selected != c.preferred) {
			c.selected = c.preferred
			c.hasSelection = true
			return c.issue(), true
		}
	}
	if c.hasSelection && containsSeason(c.seasons, c.selected) {
		return Request{}, false
	}
	if len(c.seasons) == 0 {
		// nothing left to show: drop the request in flight with the rows
		c.Close()
		c.hasSelection = false
		c.selected = 0
		c.state = StateIdle
		c.rows = nil
		c.rowsSeason = 0
		c.err = nil
		return Request{}, false
	}
	c.selected = c.seasons[0]
	c.hasSelection = true
	return c.issue(), true
}

// Prefer makes the next season list that contains season select it instead
// of the most recent one.
func (c *Controller) Prefer(season Season) {
	c.preferred = season
	c.hasPreferred = true
}

// Select changes the selection and issues a reload for it. Seasons that are
// not in the selector are rejected without changing anything.
func (c *Controller) Select(season Season) (Request, error) {
	if !containsSeason(c.seasons, season) {
		return Request{}, NewError(ErrUnknownSeason, "select", nil)
	}
	c.selected = season
	c.hasSelection = true
	return c.issue(), nil
}

// Refresh reloads the selected season. It reports false when nothing is
// selected.
func (c *Controller) Refresh() (Request, bool) {
	if !c.hasSelection {
		return Request{}, false
	}
	return c.issue(), true
}

func (c *Controller) issue() Request {
	if c.cancel != nil {
		c.cancel()
	}
	base := c.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	c.cancel = cancel
	c.seq++
	c.state = StateLoading
	return Request{Seq: c.seq, Season: c.selected, ctx: ctx}
}

// Complete applies the result of the latest request and reports whether it
// did. Results of superseded requests are dropped. A failure keeps the rows
// of the last successful reload.
func (c *Controller) Complete(res Result) bool {
	if res.Seq != c.seq || c.state != StateLoading {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if res.Err != nil {
		c.state = StateFailed
		c.err = res.Err
		return true
	}
	c.state = StateLoaded
	c.err = nil
	c.rows = res.Rows
	c.rowsSeason = res.Season
	return true
}

// Close cancels the request in flight, if any.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Seq is the id of the latest request issued.
func (c *Controller) Seq() uint64 {
	return c.seq
}

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Seq:            c.seq,
		State:          c.state,
		Seasons:        append([]Season(nil), c.seasons...),
		Selected:       c.selected,
		HasSelection:   c.hasSelection,
		ListingSeasons: c.listing,
		RowsSeason:     c.rowsSeason,
		Rows:           append([]DriverStanding(nil), c.rows...),
		Err:            c.err,
		SeasonsErr:     c.seasonsErr,
	}
}

// Next returns the season after the selected one in selector order, wrapping
// around. delta may be negative.
func (c *Controller) Next(delta int) (Season, bool) {
	if len(c.seasons) == 0 {
		return 0, false
	}
	idx := 0
	for i, s := range c.seasons {
		if s == c.selected {
			idx = i
			break
		}
	}
	n := len(c.seasons)
	idx = ((idx+delta)%n + n) % n
	return c.seasons[idx], true
}
