package assignment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KPI composite weights. Wins dominate; load keeps busy agents from
// monopolizing new leads.
const (
	kpiWinsWeight    = 0.45
	kpiCloseWeight   = 0.25
	kpiTouchesWeight = 0.20
	kpiLoadWeight    = 0.10

	kpiWinsWindow    = 45 * 24 * time.Hour
	kpiTouchesWindow = 14 * 24 * time.Hour

	// Agents with no data for a signal score neutral rather than zero, so a
	// new hire is not starved of leads.
	kpiNeutral = 0.5

	DefaultKPICacheTTL = 5 * time.Minute
)

// AgentStats is the raw per-agent material the KPI scorer works from.
type AgentStats struct {
	Wins           int     // won leads in the wins window
	ClosedItems    int     // closed triage items in the wins window
	AvgCloseHours  float64 // average time-to-close; 0 when nothing closed
	Touches        int     // triage claims in the touches window
	OpenLoad       int
	RepeatWins     int // wins on leads with repeat inbound contact
	HasCloseTiming bool
}

// StatsSource provides KPI raw material. Implemented by *StatsRepository;
// tests supply a fake.
type StatsSource interface {
	AgentStats(ctx context.Context, tenantID uuid.UUID, winsSince, touchesSince time.Time) (map[uuid.UUID]AgentStats, error)
}

type kpiCacheEntry struct {
	computedAt time.Time
	scores     map[uuid.UUID]float64
	stats      map[uuid.UUID]AgentStats
}

// KPIScorer computes per-agent composite scores (0-100) and caches them per
// tenant. The cache tolerates staleness: assignment fairness degrades
// gracefully on stale scores, never incorrectly.
type KPIScorer struct {
	source StatsSource
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[uuid.UUID]kpiCacheEntry
}

func NewKPIScorer(source StatsSource, ttl time.Duration) *KPIScorer {
	if ttl <= 0 {
		ttl = DefaultKPICacheTTL
	}
	return &KPIScorer{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[uuid.UUID]kpiCacheEntry),
	}
}

// Scores returns the tenant's per-agent composite scores, recomputing lazily
// once the cached entry is older than the TTL.
func (k *KPIScorer) Scores(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]float64, error) {
	entry, err := k.entry(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return entry.scores, nil
}

// Stats returns the cached raw stats alongside the composite, for strategies
// that need the underlying signals (AUTO_TRAIN).
func (k *KPIScorer) Stats(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]AgentStats, error) {
	entry, err := k.entry(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return entry.stats, nil
}

// Invalidate drops the tenant's cached scores so the next access recomputes.
func (k *KPIScorer) Invalidate(tenantID uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.cache, tenantID)
}

func (k *KPIScorer) entry(ctx context.Context, tenantID uuid.UUID) (kpiCacheEntry, error) {
	k.mu.Lock()
	cached, ok := k.cache[tenantID]
	k.mu.Unlock()
	if ok && k.now().Sub(cached.computedAt) < k.ttl {
		return cached, nil
	}

	now := k.now()
	stats, err := k.source.AgentStats(ctx, tenantID, now.Add(-kpiWinsWindow), now.Add(-kpiTouchesWindow))
	if err != nil {
		return kpiCacheEntry{}, err
	}

	entry := kpiCacheEntry{
		computedAt: now,
		scores:     compositeScores(stats),
		stats:      stats,
	}
	k.mu.Lock()
	k.cache[tenantID] = entry
	k.mu.Unlock()
	return entry, nil
}

// compositeScores min-max normalizes each signal across the tenant's agents
// and blends them with the fixed weights. Inverse signals (time-to-close,
// open load) are flipped so lower raw values score higher.
func compositeScores(stats map[uuid.UUID]AgentStats) map[uuid.UUID]float64 {
	scores := make(map[uuid.UUID]float64, len(stats))
	if len(stats) == 0 {
		return scores
	}

	minWins, maxWins := intRange(stats, func(s AgentStats) int { return s.Wins })
	minTouch, maxTouch := intRange(stats, func(s AgentStats) int { return s.Touches })
	minLoad, maxLoad := intRange(stats, func(s AgentStats) int { return s.OpenLoad })

	minClose, maxClose := 0.0, 0.0
	first := true
	for _, s := range stats {
		if !s.HasCloseTiming {
			continue
		}
		if first || s.AvgCloseHours < minClose {
			minClose = s.AvgCloseHours
		}
		if first || s.AvgCloseHours > maxClose {
			maxClose = s.AvgCloseHours
		}
		first = false
	}

	for id, s := range stats {
		wins := normalize(float64(s.Wins), float64(minWins), float64(maxWins))
		touches := normalize(float64(s.Touches), float64(minTouch), float64(maxTouch))
		load := 1 - normalize(float64(s.OpenLoad), float64(minLoad), float64(maxLoad))

		closeSpeed := kpiNeutral
		if s.HasCloseTiming {
			closeSpeed = 1 - normalize(s.AvgCloseHours, minClose, maxClose)
		}
		if s.Wins == 0 && minWins == maxWins {
			wins = kpiNeutral
		}
		if s.Touches == 0 && minTouch == maxTouch {
			touches = kpiNeutral
		}

		composite := kpiWinsWeight*wins + kpiCloseWeight*closeSpeed + kpiTouchesWeight*touches + kpiLoadWeight*load
		scores[id] = composite * 100
	}
	return scores
}

// normalize maps value into [0,1] over [min,max]. A degenerate range (all
// agents equal) maps to neutral.
func normalize(value, min, max float64) float64 {
	if max <= min {
		return kpiNeutral
	}
	return (value - min) / (max - min)
}

func intRange(stats map[uuid.UUID]AgentStats, pick func(AgentStats) int) (int, int) {
	first := true
	var lo, hi int
	for _, s := range stats {
		v := pick(s)
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	return lo, hi
}
