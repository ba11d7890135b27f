// Package scheduler runs the background jobs: the stale-triage sweep and
// KPI cache warmup, delivered over asynq.
package scheduler

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names.
const (
	TaskTriageStaleSweep = "triage.stale_sweep"
	TaskKPIWarmup        = "assignment.kpi_warmup"
)

// KPIWarmupPayload names the tenant whose KPI cache should be precomputed.
type KPIWarmupPayload struct {
	TenantID uuid.UUID `json:"tenantId"`
}

func NewStaleSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTriageStaleSweep, nil)
}

func NewKPIWarmupTask(tenantID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(KPIWarmupPayload{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskKPIWarmup, payload), nil
}

func ParseKPIWarmupPayload(task *asynq.Task) (KPIWarmupPayload, error) {
	var payload KPIWarmupPayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
