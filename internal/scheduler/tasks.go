package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskNurturingSweep = "nurturing.sweep.run"

const TaskReminderSweep = "reminders.sweep.run"

// SweepPayload is shared by both sweep tasks. RequestedAt is informational;
// the handler always sweeps against its own clock.
type SweepPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewNurturingSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNurturingSweep, data), nil
}

func ParseNurturingSweepPayload(task *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepPayload{}, err
	}
	return payload, nil
}

func NewReminderSweepTask(payload SweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderSweep, data), nil
}

func ParseReminderSweepPayload(task *asynq.Task) (SweepPayload, error) {
	var payload SweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SweepPayload{}, err
	}
	return payload, nil
}
