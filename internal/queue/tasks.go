package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	TaskRegistrationEmail = "mail:registration_confirmation"
	TaskBalanceEmail      = "mail:balance_receipt"
	TaskDonationEmail     = "mail:donation_receipt"
	TaskCounsellorEmail   = "mail:counsellor_confirmation"
)

// RecordPayload identifies the record a mail task is about.
type RecordPayload struct {
	ID uint `json:"id"`
}

type BalancePayload struct {
	RegistrationID uint            `json:"registration_id"`
	Amount         decimal.Decimal `json:"amount"`
}

func NewRecordTask(taskType string, id uint) (*asynq.Task, error) {
	body, err := json.Marshal(RecordPayload{ID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

func NewBalanceTask(payload BalancePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceEmail, body), nil
}

// DecodeRecord reads a RecordPayload. Malformed payloads are never retried.
func DecodeRecord(task *asynq.Task) (RecordPayload, error) {
	var payload RecordPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

func DecodeBalance(task *asynq.Task) (BalancePayload, error) {
	var payload BalancePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}
