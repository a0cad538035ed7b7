package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskEnsureClientFromLead = "clients.ensure_from_lead"

type EnsureClientFromLeadPayload struct {
	LeadID         string `json:"leadId"`
	OrganizationID string `json:"organizationId"`
	SiretOverride  string `json:"siretOverride,omitempty"`
	TraceParent    string `json:"traceParent,omitempty"`
}

func NewEnsureClientFromLeadTask(payload EnsureClientFromLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEnsureClientFromLead, data), nil
}

func ParseEnsureClientFromLeadPayload(task *asynq.Task) (EnsureClientFromLeadPayload, error) {
	var payload EnsureClientFromLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EnsureClientFromLeadPayload{}, fmt.Errorf("decode %s payload: %w", TaskEnsureClientFromLead, err)
	}
	return payload, nil
}
