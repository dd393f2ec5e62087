package feed

import (
	"context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"linkfeed/errs"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
)

var tracer = otel.Tracer("linkfeed/feed")

type Directory interface {
	Exists(ctx context.Context, userId schemas.UserId) (bool, error)
	ResolveDisplay(ctx context.Context, ids []schemas.UserId) (map[schemas.UserId]schemas.Display, error)
}

// FeedManager serves reverse-chronological pages of posts, globally or for one author.
type FeedManager struct {
	postStorage storage.Storage
	directory   Directory
}

func NewFeedManager(postStorage storage.Storage, directory Directory) *FeedManager {
	return &FeedManager{
		postStorage: postStorage,
		directory:   directory,
	}
}

// Page returns one page of the feed selected by filter. A page past the end is empty, not an error.
func (fm *FeedManager) Page(ctx context.Context, filter plain.PostsFilter, req plain.PageRequest) (_ *schemas.PostsPageData, err error) {
	ctx, span := tracer.Start(ctx, "feed.Page")
	span.SetAttributes(
		attribute.String("feed.author", string(filter.AuthorID)),
		attribute.Int("feed.page", req.Page),
		attribute.Int("feed.size", req.Size),
	)
	defer func() {
		if err != nil && errs.KindOf(err) == errs.KindStorage {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	offset, size, err := plain.CorrectDestruct(req)
	if err != nil {
		return nil, err
	}

	var (
		posts []*schemas.Post
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	if !filter.IsGlobal() {
		g.Go(func() error {
			exists, err := fm.directory.Exists(gctx, filter.AuthorID)
			if err != nil {
				return err
			}
			if !exists {
				return errs.NotFound("user", string(filter.AuthorID))
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		posts, total, err = fm.postStorage.GetPostsPage(gctx, filter, offset, size)
		if err != nil {
			return storage.Fault(err, "feed", string(filter.AuthorID))
		}
		return nil
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	profiles, err := fm.directory.ResolveDisplay(ctx, schemas.ParticipantIDs(posts...))
	if err != nil {
		return nil, err
	}

	items := make([]schemas.PostData, 0, len(posts))
	for _, post := range posts {
		items = append(items, post.ToPostData(profiles))
	}
	span.SetAttributes(attribute.Int("feed.items", len(items)), attribute.Int64("feed.total", total))

	return &schemas.PostsPageData{
		Items:       items,
		CurrentPage: req.Page,
		TotalPages:  plain.TotalPages(total, size),
		TotalCount:  total,
	}, nil
}
