package scheduler

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type stubConfig struct {
	redisURL string
}

func (c stubConfig) GetRedisURL() string       { return c.redisURL }
func (c stubConfig) GetRedisTLSInsecure() bool { return false }
func (c stubConfig) GetAsynqQueueName() string { return "lifecycle" }
func (c stubConfig) GetAsynqConcurrency() int  { return 2 }

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(server.Close)

	client, err := NewClient(stubConfig{redisURL: "redis://" + server.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client, server
}

func TestEnqueueSweeps(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	runAt := time.Now().Add(time.Hour)

	if err := client.EnqueueNurturingSweep(ctx, runAt); err != nil {
		t.Fatalf("EnqueueNurturingSweep: %v", err)
	}
	if err := client.EnqueueReminderSweep(ctx, runAt); err != nil {
		t.Fatalf("EnqueueReminderSweep: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: server.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListScheduledTasks("lifecycle")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("scheduled tasks = %d, want 2", len(tasks))
	}

	names := map[string]bool{}
	for _, task := range tasks {
		names[task.Type] = true
	}
	if !names[TaskNurturingSweep] || !names[TaskReminderSweep] {
		t.Errorf("task names = %v", names)
	}
}

func TestSweepPayloadRoundTrip(t *testing.T) {
	requested := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

	task, err := NewNurturingSweepTask(SweepPayload{RequestedAt: requested})
	if err != nil {
		t.Fatalf("NewNurturingSweepTask: %v", err)
	}
	if task.Type() != TaskNurturingSweep {
		t.Errorf("type = %s", task.Type())
	}

	payload, err := ParseNurturingSweepPayload(task)
	if err != nil {
		t.Fatalf("ParseNurturingSweepPayload: %v", err)
	}
	if !payload.RequestedAt.Equal(requested) {
		t.Errorf("requestedAt = %v, want %v", payload.RequestedAt, requested)
	}

	if _, err := ParseReminderSweepPayload(asynq.NewTask(TaskReminderSweep, []byte("{bad"))); err == nil {
		t.Error("malformed payload parsed without error")
	}
}
