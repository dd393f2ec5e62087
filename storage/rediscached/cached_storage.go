package rediscached

import (
	"context"
	"fmt"
	"github.com/go-redis/redis/v8"
	"linkfeed/log"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
	"linkfeed/storage/rediscached/redisgeneral"
	"time"
)

// CachedPostsPack is a cached feed head: the newest DefaultPageSize posts and the listing size,
// stamped with the head generation current when they were read.
type CachedPostsPack struct {
	Posts      []*schemas.Post `json:"posts"`
	Total      int64           `json:"total"`
	Generation int             `json:"generation"`
}

func (cpp *CachedPostsPack) GetVersion() int {
	return cpp.Generation
}

// HeadScheduler queues a background rebuild of a feed head. An empty author means the global feed.
type HeadScheduler interface {
	PublishWarmFeedHead(authorId schemas.UserId) error
}

// CachedStorage is a read-through cache over a Post Store for posts by id and feed heads.
type CachedStorage struct {
	persistentStorage storage.Storage
	postCache         *redisgeneral.Storage[*schemas.Post]
	feedHeadCache     *redisgeneral.Storage[*CachedPostsPack]
	scheduler         HeadScheduler
}

var _ storage.Storage = (*CachedStorage)(nil)

func NewCachedStorage(persistentStorage storage.Storage, client *redis.Client, cacheTTL time.Duration) *CachedStorage {
	return &CachedStorage{
		persistentStorage: persistentStorage,
		postCache:         redisgeneral.NewStorage[*schemas.Post](client, cacheTTL),
		feedHeadCache:     redisgeneral.NewStorage[*CachedPostsPack](client, cacheTTL),
	}
}

// SetScheduler enables background re-warming of dropped feed heads.
func (cs *CachedStorage) SetScheduler(scheduler HeadScheduler) {
	cs.scheduler = scheduler
}

func (cs *CachedStorage) PutPost(ctx context.Context, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	post, err := cs.persistentStorage.PutPost(ctx, userId, text)
	if err != nil {
		return nil, err
	}
	cs.refresh(ctx, post)
	return post, nil
}

func (cs *CachedStorage) GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error) {
	postKey := cs.getKeyForPost(postId)

	cachedPost, isFound, err := cs.postCache.Get(ctx, postKey)
	if err != nil {
		log.Warn.Printf("post cache read %s failed: %s", postKey, err)
	}
	if isFound {
		return cachedPost, nil
	}

	actualPost, err := cs.persistentStorage.GetPost(ctx, postId)
	if err != nil {
		return nil, err
	}
	freshest, err := cs.postCache.SetWithFreshness(ctx, postKey, actualPost)
	if err != nil {
		log.Warn.Printf("post cache write %s failed: %s", postKey, err)
		return actualPost, nil
	}
	return freshest, nil
}

func (cs *CachedStorage) EditPost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	editedPost, err := cs.persistentStorage.EditPost(ctx, postId, authorId, text)
	if err != nil {
		return nil, err
	}
	cs.refresh(ctx, editedPost)
	return editedPost, nil
}

func (cs *CachedStorage) DeletePost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId) error {
	if err := cs.persistentStorage.DeletePost(ctx, postId, authorId); err != nil {
		return err
	}
	if err := cs.postCache.Bury(ctx, cs.getKeyForPost(postId)); err != nil {
		log.Warn.Printf("post cache bury %s failed: %s", postId, err)
	}
	cs.dropHeads(ctx, authorId)
	return nil
}

func (cs *CachedStorage) ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	post, err := cs.persistentStorage.ToggleLike(ctx, postId, userId)
	if err != nil {
		return nil, err
	}
	cs.refresh(ctx, post)
	return post, nil
}

func (cs *CachedStorage) AppendComment(ctx context.Context, postId schemas.PostId, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	post, err := cs.persistentStorage.AppendComment(ctx, postId, userId, text)
	if err != nil {
		return nil, err
	}
	cs.refresh(ctx, post)
	return post, nil
}

// GetPostsPage serves windows inside the feed head from the cache and everything else from the store.
func (cs *CachedStorage) GetPostsPage(ctx context.Context, filter plain.PostsFilter, offset int64, limit int) ([]*schemas.Post, int64, error) {
	if offset != 0 || limit <= 0 || limit > plain.DefaultPageSize {
		return cs.persistentStorage.GetPostsPage(ctx, filter, offset, limit)
	}

	headKey := cs.getKeyForHead(filter.AuthorID)
	pack, found, err := cs.feedHeadCache.Get(ctx, headKey)
	if err != nil {
		log.Warn.Printf("feed head read %s failed: %s", headKey, err)
	}
	if !found {
		pack, err = cs.loadHead(ctx, filter.AuthorID)
		if err != nil {
			return nil, 0, err
		}
	}

	posts := pack.Posts
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, pack.Total, nil
}

// WarmFeedHead rebuilds the cached head of the author's feed, or of the global feed for an empty author.
func (cs *CachedStorage) WarmFeedHead(ctx context.Context, authorId schemas.UserId) error {
	_, err := cs.loadHead(ctx, authorId)
	return err
}

// loadHead reads the head from the store and caches it unless a mutation dropped the head meanwhile.
func (cs *CachedStorage) loadHead(ctx context.Context, authorId schemas.UserId) (*CachedPostsPack, error) {
	headKey, genKey := cs.getKeyForHead(authorId), cs.getKeyForGeneration(authorId)
	gen, genErr := cs.feedHeadCache.Generation(ctx, genKey)
	if genErr != nil {
		log.Warn.Printf("feed head generation read %s failed: %s", genKey, genErr)
	}

	posts, total, err := cs.persistentStorage.GetPostsPage(ctx, plain.PostsFilter{AuthorID: authorId}, 0, plain.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	pack := &CachedPostsPack{Posts: posts, Total: total, Generation: gen}
	if genErr != nil {
		return pack, nil
	}

	cached, err := cs.feedHeadCache.SetWithGeneration(ctx, headKey, genKey, pack)
	if err != nil {
		log.Warn.Printf("feed head write %s failed: %s", headKey, err)
		return pack, nil
	}
	return cached, nil
}

// refresh stores the new post version and drops the feed heads it may appear in.
func (cs *CachedStorage) refresh(ctx context.Context, post *schemas.Post) {
	if _, err := cs.postCache.SetWithFreshness(ctx, cs.getKeyForPost(post.ID), post); err != nil {
		log.Warn.Printf("post cache write %s failed: %s", post.ID, err)
	}
	cs.dropHeads(ctx, post.AuthorID)
}

func (cs *CachedStorage) dropHeads(ctx context.Context, authorId schemas.UserId) {
	heads := []schemas.UserId{"", authorId}
	for _, id := range heads {
		if err := cs.feedHeadCache.Invalidate(ctx, cs.getKeyForHead(id), cs.getKeyForGeneration(id)); err != nil {
			log.Warn.Printf("feed head invalidate for %q failed: %s", id, err)
		}
	}
	if cs.scheduler == nil {
		return
	}
	for _, id := range heads {
		if err := cs.scheduler.PublishWarmFeedHead(id); err != nil {
			log.Warn.Printf("schedule feed head warm for %q failed: %s", id, err)
		}
	}
}

func (cs *CachedStorage) getKeyForPost(postID schemas.PostId) string {
	return fmt.Sprintf("lnkf:posts:%s", postID.Hex())
}

func (cs *CachedStorage) getKeyForHead(authorId schemas.UserId) string {
	if authorId == "" {
		return "lnkf:head:global"
	}
	return fmt.Sprintf("lnkf:head:author:%s", authorId)
}

func (cs *CachedStorage) getKeyForGeneration(authorId schemas.UserId) string {
	if authorId == "" {
		return "lnkf:headgen:global"
	}
	return fmt.Sprintf("lnkf:headgen:author:%s", authorId)
}
