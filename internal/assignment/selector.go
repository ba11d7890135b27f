package assignment

import (
	"hash/fnv"

	"leadrouter_backend/internal/agents"
)

// Candidate is one routable agent with everything the strategies need to
// rank it.
type Candidate struct {
	Agent         agents.Agent
	OpenLoad      int
	AssignedToday int

	// Stats is the agent's KPI raw material; nil when the scorer had no
	// data for this deployment.
	Stats *AgentStats
}

// Weighted picker coefficients. Score weight is boosted when the tenant
// opted into score-aware routing.
const (
	weightScoreOn   = 0.65
	weightScoreOff  = 0.35
	weightLoad      = 0.30
	weightHeadroom  = 0.05
	jitterMagnitude = 0.01
	neutralScore    = 50.0
	autoTrainBoost  = 0.5
	featConversionW = 0.5
	featRepeatW     = 0.3
	featRevenueW    = 0.2
)

// Select applies the configured strategy to the candidate pool. A nil result
// means no assignment: all agents at capacity, or no agents at all. That is
// a normal outcome, not an error; the triage item stays NEW.
//
// The seed makes tie-breaking and jitter reproducible for a given lead.
// AUTO_TRAIN deliberately ignores the seed for its final sample: it uses the
// draw function (uniform in [0,1)) so low-weight agents still get occasional
// leads.
func Select(candidates []Candidate, cfg Config, seed string, draw func() float64) *Candidate {
	switch cfg.Strategy {
	case StrategyAutoTrain:
		return pickAutoTrain(candidates, cfg, seed, draw)
	case StrategyRoundRobin:
		return pickWeighted(candidates, cfg, seed)
	default:
		return pickLeastActive(candidates, cfg, seed)
	}
}

// pickLeastActive returns the eligible agent with the smallest open load.
// Ties break on a stable hash of seed:agentID so repeated calls with the
// same inputs return the same agent.
func pickLeastActive(candidates []Candidate, cfg Config, seed string) *Candidate {
	var best *Candidate
	var bestHash uint64
	for i := range candidates {
		c := &candidates[i]
		if atCapacity(c, cfg) {
			continue
		}
		h := stableHash(seed, c.Agent.ID.String())
		if best == nil || c.OpenLoad < best.OpenLoad || (c.OpenLoad == best.OpenLoad && h < bestHash) {
			best = c
			bestHash = h
		}
	}
	return best
}

// pickWeighted is the strategy registered as ROUND_ROBIN: a deterministic
// weighted picker favoring high-scoring, lightly loaded agents with
// capacity headroom.
func pickWeighted(candidates []Candidate, cfg Config, seed string) *Candidate {
	eligible := filterEligible(candidates, cfg)
	if len(eligible) == 0 {
		return nil
	}

	scoreWeight := weightScoreOff
	if cfg.ConsiderScore {
		scoreWeight = weightScoreOn
	}

	minScore, maxScore := scoreRange(eligible)

	var best *Candidate
	bestWeight := -1.0
	for _, c := range eligible {
		scoreNorm := normalize(externalScore(c.Agent), minScore, maxScore)
		loadNorm := 1.0 / float64(1+c.OpenLoad)
		headroom := headroomNorm(c)
		jitter := float64(stableHash(seed, c.Agent.ID.String())%1000) / 1000.0 * jitterMagnitude

		weight := scoreWeight*scoreNorm + weightLoad*loadNorm + weightHeadroom*headroom + jitter
		if weight > bestWeight {
			bestWeight = weight
			best = c
		}
	}
	return best
}

// pickAutoTrain samples an agent proportionally to its KPI feature weight:
// conversion rate, repeat-customer rate and revenue (neutral here, no
// revenue signal in this system). Agents under the daily floor get a
// fairness boost; agents at the daily cap sit out. When no agent has KPI
// data at all, it falls back to the weighted picker.
func pickAutoTrain(candidates []Candidate, cfg Config, seed string, draw func() float64) *Candidate {
	eligible := filterEligible(candidates, cfg)
	if len(eligible) == 0 {
		return nil
	}

	hasStats := false
	for _, c := range eligible {
		if c.Stats != nil {
			hasStats = true
			break
		}
	}
	if !hasStats {
		return pickWeighted(candidates, cfg, seed)
	}

	type weighted struct {
		candidate *Candidate
		weight    float64
	}

	minConv, maxConv := featureRange(eligible, conversionRate)
	minRep, maxRep := featureRange(eligible, repeatRate)

	var pool []weighted
	var total float64
	for _, c := range eligible {
		if cfg.MaxDaily > 0 && c.AssignedToday >= cfg.MaxDaily {
			continue
		}

		weight := featConversionW*normalize(conversionRate(c), minConv, maxConv) +
			featRepeatW*normalize(repeatRate(c), minRep, maxRep) +
			featRevenueW*kpiNeutral
		if cfg.MinDaily > 0 && c.AssignedToday < cfg.MinDaily {
			weight += autoTrainBoost
		}
		if weight <= 0 {
			continue
		}
		pool = append(pool, weighted{candidate: c, weight: weight})
		total += weight
	}

	if len(pool) == 0 || total <= 0 {
		return pickWeighted(candidates, cfg, seed)
	}

	target := draw() * total
	for _, w := range pool {
		target -= w.weight
		if target <= 0 {
			return w.candidate
		}
	}
	return pool[len(pool)-1].candidate
}

func filterEligible(candidates []Candidate, cfg Config) []*Candidate {
	eligible := make([]*Candidate, 0, len(candidates))
	for i := range candidates {
		if atCapacity(&candidates[i], cfg) {
			continue
		}
		eligible = append(eligible, &candidates[i])
	}
	return eligible
}

func atCapacity(c *Candidate, cfg Config) bool {
	if !cfg.ConsiderCapacity || c.Agent.Capacity == nil {
		return false
	}
	return c.OpenLoad >= *c.Agent.Capacity
}

func externalScore(agent agents.Agent) float64 {
	if agent.ExternalScore == nil {
		return neutralScore
	}
	return float64(*agent.ExternalScore)
}

// headroomNorm maps remaining capacity into [0,1]. Uncapped agents have
// maximal headroom.
func headroomNorm(c *Candidate) float64 {
	if c.Agent.Capacity == nil {
		return 1.0
	}
	headroom := *c.Agent.Capacity - c.OpenLoad
	if headroom <= 0 {
		return 0
	}
	return float64(headroom) / float64(*c.Agent.Capacity)
}

func conversionRate(c *Candidate) float64 {
	if c.Stats == nil || c.Stats.ClosedItems == 0 {
		return kpiNeutral
	}
	return float64(c.Stats.Wins) / float64(c.Stats.ClosedItems)
}

func repeatRate(c *Candidate) float64 {
	if c.Stats == nil || c.Stats.Wins == 0 {
		return kpiNeutral
	}
	return float64(c.Stats.RepeatWins) / float64(c.Stats.Wins)
}

func scoreRange(eligible []*Candidate) (float64, float64) {
	return featureRange(eligible, func(c *Candidate) float64 { return externalScore(c.Agent) })
}

func featureRange(eligible []*Candidate, feature func(*Candidate) float64) (float64, float64) {
	first := true
	var lo, hi float64
	for _, c := range eligible {
		v := feature(c)
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

func stableHash(seed, agentID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(seed))
	h.Write([]byte{':'})
	h.Write([]byte(agentID))
	return h.Sum64()
}
