package queue

import (
	"github.com/hibiken/asynq"
	"github.com/ledgerline/ledgerline/pkg/config"
)

// NewClient builds the asynq client the API server uses to enqueue audit
// writes and recurring invoice work.
func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	})
}

// NewServer builds the worker-side consumer. Audit records ride the low
// queue so generation tasks are never starved by audit volume.
func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)
}
