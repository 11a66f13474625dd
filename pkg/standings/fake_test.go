package standings

import (
	"context"
	"sync"
)

type fakeSource struct {
	mu         sync.Mutex
	seasons    []Season
	seasonsErr error
	rows       map[Season][]DriverStanding
	errs       map[Season]error
	gates      map[Season]chan struct{}
	calls      map[Season]int
}

func newFakeSource(seasons ...Season) *fakeSource {
	return &fakeSource{
		seasons: seasons,
		rows:    map[Season][]DriverStanding{},
		errs:    map[Season]error{},
		gates:   map[Season]chan struct{}{},
		calls:   map[Season]int{},
	}
}

func (f *fakeSource) ListSeasons(ctx context.Context) ([]Season, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seasonsErr != nil {
		return nil, f.seasonsErr
	}
	return append([]Season(nil), f.seasons...), nil
}

// FetchStandings ignores cancellation while gated so tests can deliver a
// superseded result after a newer one.
func (f *fakeSource) FetchStandings(ctx context.Context, season Season) ([]DriverStanding, error) {
	f.mu.Lock()
	f.calls[season]++
	gate := f.gates[season]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[season]; err != nil {
		return nil, err
	}
	return append([]DriverStanding(nil), f.rows[season]...), nil
}

func (f *fakeSource) set(season Season, rows []DriverStanding, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[season] = rows
	f.errs[season] = err
}

func (f *fakeSource) gate(season Season) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[season] = ch
	return ch
}

type blockingSource struct{}

func (blockingSource) ListSeasons(ctx context.Context) ([]Season, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) FetchStandings(ctx context.Context, _ Season) ([]DriverStanding, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
