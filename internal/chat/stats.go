package chat

import (
	"context"
	"log"

	"campusiq-chat/internal/ragapi"
)

type StatsState int

const (
	StatsLoading StatsState = iota
	StatsLoaded
	StatsFailed
)

type StatsFetcher interface {
	Stats(ctx context.Context) (ragapi.Stats, error)
}

// StatsOutcome is the result of one stats fetch, to be handed back to the
// controller on the event loop.
type StatsOutcome struct {
	token uint64
	stats ragapi.Stats
	err   error
}

// StatsController fetches the system-statistics snapshot on startup and on
// manual refresh. It is decoupled from the conversation: its failures never
// reach the session store or the orchestrator.
type StatsController struct {
	client StatsFetcher
	state  StatsState
	stats  ragapi.Stats
	token  uint64
	logf   func(format string, args ...any)
}

func NewStatsController(client StatsFetcher) *StatsController {
	return &StatsController{client: client, state: StatsLoading, logf: log.Printf}
}

func (s *StatsController) State() StatsState { return s.state }

// Snapshot returns the last loaded statistics. The boolean is false unless
// the controller is in the loaded state.
func (s *StatsController) Snapshot() (ragapi.Stats, bool) {
	if s.state != StatsLoaded {
		return ragapi.Stats{}, false
	}
	return s.stats, true
}

// Refresh puts the controller into the loading state and returns the fetch
// to run off-loop. Its outcome goes to Complete; when refreshes overlap,
// only the most recent one is applied.
func (s *StatsController) Refresh() func(ctx context.Context) StatsOutcome {
	s.state = StatsLoading
	s.token++

	token := s.token
	client := s.client
	return func(ctx context.Context) StatsOutcome {
		stats, err := client.Stats(ctx)
		return StatsOutcome{token: token, stats: stats, err: err}
	}
}

// Complete applies a fetch result. Failures degrade to the failed state
// with no snapshot; no error propagates.
func (s *StatsController) Complete(out StatsOutcome) {
	if out.token != s.token {
		return
	}
	if out.err != nil {
		s.logf("chat: stats fetch failed: %v", out.err)
		s.state = StatsFailed
		s.stats = ragapi.Stats{}
		return
	}
	s.state = StatsLoaded
	s.stats = out.stats
}
