package worker

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeInvalidateCache = "cache:invalidate"
)

const QueueDefault = "default"

// InvalidateCachePayload is the payload for cache invalidation tasks
type InvalidateCachePayload struct {
	Prefix string `json:"prefix"`
}

// NewInvalidateCacheTask creates a new cache invalidation task
func NewInvalidateCacheTask(payload InvalidateCachePayload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvalidateCache, data, opts...), nil
}
