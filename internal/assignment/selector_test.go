package assignment

import (
	"testing"

	"leadrouter_backend/internal/agents"

	"github.com/google/uuid"
)

func intPtr(v int) *int { return &v }

func candidate(load int, capacity *int) Candidate {
	return Candidate{
		Agent:    agents.Agent{ID: uuid.New(), Name: "agent", Active: true, Capacity: capacity},
		OpenLoad: load,
	}
}

func fixedDraw(v float64) func() float64 {
	return func() float64 { return v }
}

func TestLeastActivePicksSmallestLoad(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	candidates := []Candidate{candidate(5, nil), candidate(1, nil), candidate(3, nil)}

	pick := Select(candidates, cfg, "seed", fixedDraw(0))
	if pick == nil {
		t.Fatalf("expected a pick")
	}
	if pick.OpenLoad != 1 {
		t.Fatalf("expected least loaded agent, got load %d", pick.OpenLoad)
	}
}

func TestLeastActiveTieBreakIsDeterministic(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	candidates := []Candidate{candidate(2, nil), candidate(2, nil), candidate(2, nil)}

	first := Select(candidates, cfg, "lead-123", fixedDraw(0))
	for i := 0; i < 10; i++ {
		again := Select(candidates, cfg, "lead-123", fixedDraw(0))
		if again == nil || again.Agent.ID != first.Agent.ID {
			t.Fatalf("tie-break not stable: got %v then %v", first.Agent.ID, again)
		}
	}

	// A different seed is allowed to (and here, should eventually) produce a
	// different winner across many seeds; at minimum it must stay stable for
	// its own seed.
	other := Select(candidates, cfg, "lead-456", fixedDraw(0))
	if other == nil {
		t.Fatalf("expected a pick for second seed")
	}
}

func TestCapacityExcludesSoleAgent(t *testing.T) {
	cfg := DefaultConfig(uuid.New())

	for _, strategy := range []Strategy{StrategyLeastActive, StrategyRoundRobin} {
		cfg.Strategy = strategy
		full := []Candidate{candidate(2, intPtr(2))}
		if pick := Select(full, cfg, "seed", fixedDraw(0)); pick != nil {
			t.Fatalf("%s: agent at capacity must not be picked", strategy)
		}
	}
}

func TestCapacityIgnoredWhenDisabled(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.ConsiderCapacity = false

	full := []Candidate{candidate(2, intPtr(2))}
	if pick := Select(full, cfg, "seed", fixedDraw(0)); pick == nil {
		t.Fatalf("capacity must be ignored when considerCapacity is off")
	}
}

func TestWeightedPickerFavorsLowLoad(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.Strategy = StrategyRoundRobin

	busy := candidate(10, nil)
	idle := candidate(0, nil)

	pick := Select([]Candidate{busy, idle}, cfg, "seed", fixedDraw(0))
	if pick == nil || pick.Agent.ID != idle.Agent.ID {
		t.Fatalf("expected the idle agent to win")
	}
}

func TestWeightedPickerUsesScoreWhenEnabled(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.Strategy = StrategyRoundRobin
	cfg.ConsiderScore = true

	strong := candidate(3, nil)
	strong.Agent.ExternalScore = intPtr(95)
	weak := candidate(3, nil)
	weak.Agent.ExternalScore = intPtr(10)

	pick := Select([]Candidate{weak, strong}, cfg, "seed", fixedDraw(0))
	if pick == nil || pick.Agent.ID != strong.Agent.ID {
		t.Fatalf("expected the high-score agent to win")
	}
}

func TestAutoTrainFallsBackWithoutStats(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.Strategy = StrategyAutoTrain

	busy := candidate(10, nil)
	idle := candidate(0, nil)

	// No candidate carries KPI stats: the weighted picker decides.
	pick := Select([]Candidate{busy, idle}, cfg, "seed", fixedDraw(0))
	if pick == nil || pick.Agent.ID != idle.Agent.ID {
		t.Fatalf("expected structural fallback to the weighted picker")
	}
}

func TestAutoTrainSamplesProportionally(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.Strategy = StrategyAutoTrain

	converter := candidate(0, nil)
	converter.Stats = &AgentStats{Wins: 5, ClosedItems: 5}
	laggard := candidate(0, nil)
	laggard.Stats = &AgentStats{Wins: 0, ClosedItems: 5}

	// converter weight 0.6, laggard 0.4 (conversion 1.0 vs 0.0, repeat-rate
	// neutral flips the other way, revenue neutral for both).
	pool := []Candidate{converter, laggard}

	pick := Select(pool, cfg, "seed", fixedDraw(0.5))
	if pick == nil || pick.Agent.ID != converter.Agent.ID {
		t.Fatalf("low draw should land on the high-weight agent")
	}

	pick = Select(pool, cfg, "seed", fixedDraw(0.99))
	if pick == nil || pick.Agent.ID != laggard.Agent.ID {
		t.Fatalf("high draw should land on the low-weight agent")
	}
}

func TestAutoTrainDailyCapExcludes(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.Strategy = StrategyAutoTrain
	cfg.MaxDaily = 5

	capped := candidate(0, nil)
	capped.Stats = &AgentStats{Wins: 5, ClosedItems: 5}
	capped.AssignedToday = 5
	fresh := candidate(0, nil)
	fresh.Stats = &AgentStats{Wins: 1, ClosedItems: 5}

	for i := 0; i < 5; i++ {
		pick := Select([]Candidate{capped, fresh}, cfg, "seed", fixedDraw(float64(i)/5))
		if pick == nil || pick.Agent.ID != fresh.Agent.ID {
			t.Fatalf("agent at the daily cap must sit out")
		}
	}
}

func TestAutoTrainFairnessBoostBelowFloor(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	cfg.Strategy = StrategyAutoTrain
	cfg.MinDaily = 2

	starved := candidate(0, nil)
	starved.Stats = &AgentStats{Wins: 0, ClosedItems: 5}
	starved.AssignedToday = 0
	fed := candidate(0, nil)
	fed.Stats = &AgentStats{Wins: 5, ClosedItems: 5}
	fed.AssignedToday = 4

	// Without the boost the starved agent's weight is 0.4 vs 0.6; with the
	// +0.5 boost it becomes 0.9 of a 1.5 total, so a mid-range draw lands on
	// whoever comes first in pool order with enough mass. Verify the boost
	// shifts the split point past 0.6.
	pick := Select([]Candidate{fed, starved}, cfg, "seed", fixedDraw(0.7))
	if pick == nil || pick.Agent.ID != starved.Agent.ID {
		t.Fatalf("expected the under-floor agent to absorb more probability mass")
	}
}

func TestSelectEmptyPool(t *testing.T) {
	cfg := DefaultConfig(uuid.New())
	for _, strategy := range []Strategy{StrategyLeastActive, StrategyRoundRobin, StrategyAutoTrain} {
		cfg.Strategy = strategy
		if pick := Select(nil, cfg, "seed", fixedDraw(0)); pick != nil {
			t.Fatalf("%s: empty pool must yield no assignment", strategy)
		}
	}
}
