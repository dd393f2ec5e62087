package workers

import (
	"context"
	"linkfeed/log"
	"linkfeed/schemas"
	"time"
)

const WarmFeedHeadTask = "WarmFeedHead"

// FeedHeadLoader rebuilds a cached feed head. An empty author means the global feed.
type FeedHeadLoader interface {
	WarmFeedHead(ctx context.Context, authorId schemas.UserId) error
}

type FeedTasksExecutor struct {
	loader  FeedHeadLoader
	timeout time.Duration
}

func NewFeedTasksExecutor(loader FeedHeadLoader, timeout time.Duration) *FeedTasksExecutor {
	return &FeedTasksExecutor{loader: loader, timeout: timeout}
}

func (fte *FeedTasksExecutor) ExecuteWarmFeedHead(authorId string) error {
	ctx, cancel := context.WithTimeout(context.Background(), fte.timeout)
	defer cancel()

	if err := fte.loader.WarmFeedHead(ctx, schemas.UserId(authorId)); err != nil {
		log.Warn.Printf("warm feed head %q failed: %s", authorId, err)
		return err
	}
	return nil
}

func (fte *FeedTasksExecutor) GetCommandsMapping() map[string]interface{} {
	return map[string]interface{}{
		WarmFeedHeadTask: fte.ExecuteWarmFeedHead,
	}
}
