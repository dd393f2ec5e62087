package workers

import (
	"fmt"
	"github.com/RichardKnop/machinery/v1"
	"github.com/RichardKnop/machinery/v1/config"
	mlog "github.com/RichardKnop/machinery/v1/log"
	"github.com/RichardKnop/machinery/v1/tasks"
	"linkfeed/log"
	"linkfeed/schemas"
	"time"
)

// Scheduler sends feed tasks through a Redis-backed machinery server and runs their consumer.
type Scheduler struct {
	server *machinery.Server
}

func NewScheduler(brokerUrl string) (*Scheduler, error) {
	cfg := &config.Config{
		DefaultQueue:    "linkfeed_tasks",
		ResultsExpireIn: int(time.Hour.Seconds()),
		Broker:          fmt.Sprintf("redis://%s", brokerUrl),
		ResultBackend:   fmt.Sprintf("redis://%s", brokerUrl),
		Redis: &config.RedisConfig{
			MaxIdle:                3,
			IdleTimeout:            240,
			ReadTimeout:            15,
			WriteTimeout:           15,
			ConnectTimeout:         15,
			NormalTasksPollPeriod:  1000,
			DelayedTasksPollPeriod: 500,
		},
	}

	mlog.Set(log.Info)
	server, err := machinery.NewServer(cfg)
	if err != nil {
		return nil, fmt.Errorf("machinery server: %w", err)
	}
	return &Scheduler{server: server}, nil
}

func (sh *Scheduler) Register(executor *FeedTasksExecutor) error {
	return sh.server.RegisterTasks(executor.GetCommandsMapping())
}

func (sh *Scheduler) Listen(concurrency int) error {
	worker := sh.server.NewWorker("linkfeed_worker", concurrency)
	worker.SetErrorHandler(func(err error) {
		log.Error.Println("task failed:", err)
	})
	return worker.Launch()
}

func (sh *Scheduler) PublishWarmFeedHead(authorId schemas.UserId) error {
	_, err := sh.server.SendTask(warmFeedHeadSignature(authorId))
	return err
}

func warmFeedHeadSignature(authorId schemas.UserId) *tasks.Signature {
	return &tasks.Signature{
		Name: WarmFeedHeadTask,
		Args: []tasks.Arg{
			{
				Type:  "string",
				Value: string(authorId),
			},
		},
		RetryCount: 1,
	}
}
