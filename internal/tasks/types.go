package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeGenerateInvoice = "invoice:generate_recurring"
	TypeSchedulerTick   = "scheduler:tick"
)

// GenerateInvoicePayload identifies one recurring invoice due for generation.
type GenerateInvoicePayload struct {
	RecurringInvoiceID uuid.UUID `json:"recurring_invoice_id"`
	OrganizationID     uuid.UUID `json:"organization_id"`
}

func NewGenerateInvoiceTask(payload GenerateInvoicePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateInvoice, data), nil
}

// SchedulerTickPayload is empty - the tick sweeps all organizations.
type SchedulerTickPayload struct{}

func NewSchedulerTickTask() *asynq.Task {
	return asynq.NewTask(TypeSchedulerTick, nil)
}
