package mock

import (
	"context"

	"github.com/hibiken/asynq"
)

// Queue is a mock asynq enqueuer.
type Queue struct {
	EnqueueFn func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func (q *Queue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return q.EnqueueFn(ctx, task, opts...)
}

// Archive is a mock object store.
type Archive struct {
	PutJSONFn func(ctx context.Context, key string, v any) (string, error)
	GetJSONFn func(ctx context.Context, ref string, out any) error
}

func (a *Archive) PutJSON(ctx context.Context, key string, v any) (string, error) {
	return a.PutJSONFn(ctx, key, v)
}

func (a *Archive) GetJSON(ctx context.Context, ref string, out any) error {
	return a.GetJSONFn(ctx, ref, out)
}
