// Package queue implements the diagnosis job queue on redis: a pending list
// drained by workers and per-task result keys with a bounded TTL.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"smartagri-server-go/internal/domain/diagnosis"
	"smartagri-server-go/internal/platform/errors"
)

const resultKeyPrefix = "diagnosis:result:"

// StatusRecord is what the API returns for a task id. Unknown ids read as
// PENDING, matching the behavior of result backends that only materialize
// state once a worker touches the task.
type StatusRecord struct {
	TaskID string            `json:"task_id"`
	Status string            `json:"status"`
	Result *diagnosis.Result `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Queue is the redis-backed job queue and result store.
type Queue struct {
	rdb        *redis.Client
	pendingKey string
	resultTTL  time.Duration
}

// New creates a Queue over an existing redis client.
func New(rdb *redis.Client, pendingKey string, resultTTL time.Duration) *Queue {
	if pendingKey == "" {
		pendingKey = "diagnosis:pending"
	}
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	return &Queue{rdb: rdb, pendingKey: pendingKey, resultTTL: resultTTL}
}

// Enqueue submits a task and returns its id. The result key is created in
// PENDING state immediately so a status query right after submission resolves.
func (q *Queue) Enqueue(ctx context.Context, task *diagnosis.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	payload, err := sonic.Marshal(task)
	if err != nil {
		return "", errors.Wrap(errors.KindQueue, "queue.Enqueue", "encode task", err)
	}

	if err := q.writeStatus(ctx, &StatusRecord{TaskID: task.ID, Status: diagnosis.StatePending}); err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.pendingKey, payload).Err(); err != nil {
		return "", errors.Wrap(errors.KindQueue, "queue.Enqueue", "push task", err)
	}
	return task.ID, nil
}

// Dequeue blocks up to timeout for the next task. Returns (nil, nil) when the
// queue stays empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*diagnosis.Task, error) {
	values, err := q.rdb.BRPop(ctx, timeout, q.pendingKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindQueue, "queue.Dequeue", "pop task", err)
	}
	// BRPOP returns [key, value].
	var task diagnosis.Task
	if err := sonic.Unmarshal([]byte(values[1]), &task); err != nil {
		return nil, errors.Wrap(errors.KindQueue, "queue.Dequeue", "decode task", err)
	}
	return &task, nil
}

// MarkStarted records that a worker picked the task up.
func (q *Queue) MarkStarted(ctx context.Context, taskID string) error {
	return q.writeStatus(ctx, &StatusRecord{TaskID: taskID, Status: diagnosis.StateStarted})
}

// SetSuccess stores the finished result.
func (q *Queue) SetSuccess(ctx context.Context, taskID string, result *diagnosis.Result) error {
	return q.writeStatus(ctx, &StatusRecord{
		TaskID: taskID,
		Status: diagnosis.StateSuccess,
		Result: result,
	})
}

// SetFailure stores the failure message.
func (q *Queue) SetFailure(ctx context.Context, taskID string, message string) error {
	return q.writeStatus(ctx, &StatusRecord{
		TaskID: taskID,
		Status: diagnosis.StateFailure,
		Error:  message,
	})
}

// Status reads the current state of a task.
func (q *Queue) Status(ctx context.Context, taskID string) (*StatusRecord, error) {
	data, err := q.rdb.Get(ctx, resultKeyPrefix+taskID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return &StatusRecord{TaskID: taskID, Status: diagnosis.StatePending}, nil
		}
		return nil, errors.Wrap(errors.KindQueue, "queue.Status", "read status", err)
	}
	var record StatusRecord
	if err := sonic.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(errors.KindQueue, "queue.Status", "decode status", err)
	}
	return &record, nil
}

// Depth reports how many tasks are waiting.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.pendingKey).Result()
	if err != nil {
		return 0, errors.Wrap(errors.KindQueue, "queue.Depth", "list length", err)
	}
	return n, nil
}

func (q *Queue) writeStatus(ctx context.Context, record *StatusRecord) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return errors.Wrap(errors.KindQueue, "queue.writeStatus", "encode status", err)
	}
	key := resultKeyPrefix + record.TaskID
	if err := q.rdb.Set(ctx, key, data, q.resultTTL).Err(); err != nil {
		return errors.Wrap(errors.KindQueue, "queue.writeStatus",
			fmt.Sprintf("write status %s", key), err)
	}
	return nil
}
