package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDealEmail = "pipeline.deal_email"

type DealEmailPayload struct {
	UserID        string  `json:"userId"`
	OpportunityID string  `json:"opportunityId"`
	Kind          string  `json:"kind"`
	Outcome       string  `json:"outcome"`
	Title         string  `json:"title"`
	AccountName   string  `json:"accountName"`
	Value         float64 `json:"value"`
}

func NewDealEmailTask(payload DealEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDealEmail, data), nil
}

func ParseDealEmailPayload(task *asynq.Task) (DealEmailPayload, error) {
	var payload DealEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DealEmailPayload{}, err
	}
	return payload, nil
}
