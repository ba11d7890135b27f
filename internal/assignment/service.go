package assignment

import (
	"context"
	"math/rand"

	"leadrouter_backend/internal/agents"
	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// AgentSource lists the routable agents of a tenant.
type AgentSource interface {
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]agents.Agent, error)
}

// LeadStore is the slice of the leads persistence the assigner needs.
type LeadStore interface {
	GetByID(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error)
	UpdateAssignment(ctx context.Context, tenantID, leadID uuid.UUID, agentID *uuid.UUID) error
	CountOpenByAgent(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int, error)
	AppendEvent(ctx context.Context, params repository.AppendEventParams) error
}

// ConfigSource serves the tenant's assignment policy.
type ConfigSource interface {
	GetOrDefault(ctx context.Context, tenantID uuid.UUID) (Config, error)
	Upsert(ctx context.Context, cfg Config) (Config, error)
}

// DailyCounter reports today's per-agent assignment counts.
type DailyCounter interface {
	CountAssignedToday(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int, error)
}

// ItemClaimer moves a lead's open triage item to IN_PROGRESS once an agent
// owns the lead.
type ItemClaimer interface {
	ClaimLatestForLead(ctx context.Context, tenantID, leadID, agentID uuid.UUID) error
}

// WarmupEnqueuer schedules a background KPI recompute for a tenant.
type WarmupEnqueuer interface {
	EnqueueKPIWarmup(ctx context.Context, tenantID uuid.UUID) error
}

type Service struct {
	agentSrc AgentSource
	leads    LeadStore
	configs  ConfigSource
	daily    DailyCounter
	kpi      *KPIScorer
	claimer  ItemClaimer
	warmup   WarmupEnqueuer
	bus      events.Bus
	log      *logger.Logger

	// randFloat feeds AUTO_TRAIN's proportional sampling; swapped out in
	// tests for a deterministic draw.
	randFloat func() float64
}

func NewService(agentSrc AgentSource, leads LeadStore, configs ConfigSource, daily DailyCounter, kpi *KPIScorer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		agentSrc:  agentSrc,
		leads:     leads,
		configs:   configs,
		daily:     daily,
		kpi:       kpi,
		bus:       bus,
		log:       log,
		randFloat: rand.Float64,
	}
}

// SetItemClaimer and SetWarmupEnqueuer wire collaborators after
// construction; both are optional and nil-safe.
func (s *Service) SetItemClaimer(c ItemClaimer)       { s.claimer = c }
func (s *Service) SetWarmupEnqueuer(w WarmupEnqueuer) { s.warmup = w }

// noAssignment is the "leave it in the queue" outcome. It is a valid steady
// state, never an error.
func noAssignment(strategy Strategy, reason string) transport.AssignmentResult {
	return transport.AssignmentResult{Success: false, Strategy: string(strategy), Reason: reason}
}

// AutoAssign routes one unassigned lead according to the tenant's config.
// Returns a failure result, not an error, when no agent is eligible.
func (s *Service) AutoAssign(ctx context.Context, tenantID, leadID uuid.UUID) (transport.AssignmentResult, error) {
	const op = "assignment.AutoAssign"

	cfg, err := s.configs.GetOrDefault(ctx, tenantID)
	if err != nil {
		return transport.AssignmentResult{}, apperr.Wrap(apperr.KindInternal, "failed to load assignment config", err).WithOp(op)
	}
	if !cfg.AutoAssign {
		return noAssignment(cfg.Strategy, "auto-assign disabled"), nil
	}

	candidates, err := s.buildCandidates(ctx, tenantID, cfg)
	if err != nil {
		return transport.AssignmentResult{}, apperr.Wrap(apperr.KindInternal, "failed to build candidate pool", err).WithOp(op)
	}
	if len(candidates) == 0 {
		result := noAssignment(cfg.Strategy, "no active agents")
		s.log.AssignmentEvent(string(cfg.Strategy), false, "", result.Reason)
		return result, nil
	}

	pick := Select(candidates, cfg, leadID.String(), s.randFloat)
	if pick == nil {
		result := noAssignment(cfg.Strategy, "all agents at capacity")
		s.log.AssignmentEvent(string(cfg.Strategy), false, "", result.Reason)
		return result, nil
	}

	agentID := pick.Agent.ID
	if err := s.leads.UpdateAssignment(ctx, tenantID, leadID, &agentID); err != nil {
		return transport.AssignmentResult{}, apperr.Wrap(apperr.KindInternal, "failed to persist assignment", err).WithOp(op)
	}

	// Side effects past this point are best-effort; the assignment stands.
	if err := s.leads.AppendEvent(ctx, repository.AppendEventParams{
		TenantID:  tenantID,
		LeadID:    leadID,
		EventType: repository.EventLeadAssigned,
		Payload: map[string]any{
			"agentId":  agentID,
			"strategy": cfg.Strategy,
		},
	}); err != nil {
		s.log.DatabaseError("assignment.append_event", err)
	}

	if s.claimer != nil {
		if err := s.claimer.ClaimLatestForLead(ctx, tenantID, leadID, agentID); err != nil {
			s.log.Error("failed to claim triage item after assignment",
				"lead_id", leadID.String(), "agent_id", agentID.String(), "error", err)
		}
	}

	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		TenantID:  tenantID,
		NewAgent:  agentID,
		Strategy:  string(cfg.Strategy),
	})
	s.log.AssignmentEvent(string(cfg.Strategy), true, agentID.String(), "")

	return transport.AssignmentResult{
		Success:  true,
		AgentID:  &agentID,
		Strategy: string(cfg.Strategy),
	}, nil
}

// buildCandidates assembles the pool the strategies rank: active agents,
// their open loads, and for AUTO_TRAIN the KPI stats and today's counts.
func (s *Service) buildCandidates(ctx context.Context, tenantID uuid.UUID, cfg Config) ([]Candidate, error) {
	active, err := s.agentSrc.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}

	loads, err := s.leads.CountOpenByAgent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var stats map[uuid.UUID]AgentStats
	var assignedToday map[uuid.UUID]int
	if cfg.Strategy == StrategyAutoTrain {
		// KPI data is optional: a failure here degrades AUTO_TRAIN to its
		// structural fallback rather than blocking assignment.
		if stats, err = s.kpi.Stats(ctx, tenantID); err != nil {
			s.log.Error("kpi stats unavailable", "tenant_id", tenantID.String(), "error", err)
			stats = nil
		}
		if assignedToday, err = s.daily.CountAssignedToday(ctx, tenantID); err != nil {
			s.log.Error("daily assignment counts unavailable", "tenant_id", tenantID.String(), "error", err)
			assignedToday = nil
		}
	}

	candidates := make([]Candidate, 0, len(active))
	for _, agent := range active {
		c := Candidate{
			Agent:         agent,
			OpenLoad:      loads[agent.ID],
			AssignedToday: assignedToday[agent.ID],
		}
		if st, ok := stats[agent.ID]; ok {
			stCopy := st
			c.Stats = &stCopy
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// GetConfig returns the tenant's effective assignment config.
func (s *Service) GetConfig(ctx context.Context, tenantID uuid.UUID) (Config, error) {
	cfg, err := s.configs.GetOrDefault(ctx, tenantID)
	if err != nil {
		return Config{}, apperr.Wrap(apperr.KindInternal, "failed to load assignment config", err).WithOp("assignment.GetConfig")
	}
	return cfg, nil
}

// UpdateConfig stores a new policy and invalidates the tenant's KPI cache so
// strategy changes take effect immediately.
func (s *Service) UpdateConfig(ctx context.Context, cfg Config) (Config, error) {
	const op = "assignment.UpdateConfig"

	if !cfg.Strategy.IsValid() {
		return Config{}, apperr.Validation("unknown assignment strategy").WithOp(op)
	}
	if cfg.MinDaily < 0 || cfg.MaxDaily < 0 {
		return Config{}, apperr.Validation("daily bounds must be non-negative").WithOp(op)
	}
	if cfg.MaxDaily > 0 && cfg.MinDaily > cfg.MaxDaily {
		return Config{}, apperr.Validation("daily floor exceeds daily cap").WithOp(op)
	}

	stored, err := s.configs.Upsert(ctx, cfg)
	if err != nil {
		return Config{}, apperr.Wrap(apperr.KindInternal, "failed to store assignment config", err).WithOp(op)
	}
	s.kpi.Invalidate(cfg.TenantID)
	if s.warmup != nil {
		if err := s.warmup.EnqueueKPIWarmup(ctx, cfg.TenantID); err != nil {
			s.log.Error("failed to enqueue kpi warmup", "tenant_id", cfg.TenantID.String(), "error", err)
		}
	}
	return stored, nil
}

// WarmupKPI precomputes the tenant's KPI scores ahead of cache expiry. Used
// by the background worker.
func (s *Service) WarmupKPI(ctx context.Context, tenantID uuid.UUID) error {
	s.kpi.Invalidate(tenantID)
	if _, err := s.kpi.Scores(ctx, tenantID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to warm kpi cache", err).WithOp("assignment.WarmupKPI")
	}
	return nil
}
