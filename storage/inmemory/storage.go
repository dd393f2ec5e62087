package inmemory

import (
	"context"
	"fmt"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
	"sort"
	"sync"
	"time"
)

// record guards one post. Lock order is MemoryStorage.mu before record.mu.
type record struct {
	mu        sync.Mutex
	post      *schemas.Post
	likeIndex map[schemas.UserId]struct{}
}

type MemoryStorage struct {
	mu sync.RWMutex

	postById     map[schemas.PostId]*record
	posts        []*record
	postByAuthor map[schemas.UserId][]*record

	now func() time.Time
}

var _ storage.Storage = (*MemoryStorage)(nil)

type Option func(*MemoryStorage)

// WithClock replaces the wall clock used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStorage) {
		s.now = now
	}
}

func NewInMemoryStorage(opts ...Option) *MemoryStorage {
	s := &MemoryStorage{
		postById:     map[schemas.PostId]*record{},
		postByAuthor: map[schemas.UserId][]*record{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStorage) Now() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *MemoryStorage) PutPost(_ context.Context, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizePostContent(string(text))
	if err != nil {
		return nil, err
	}

	now := s.Now()
	rec := &record{
		post: &schemas.Post{
			ID:        schemas.NewPostId(),
			Version:   1,
			AuthorID:  userId,
			Content:   content,
			Likes:     []schemas.UserId{},
			Comments:  []schemas.Comment{},
			CreatedAt: now,
			UpdatedAt: now,
		},
		likeIndex: map[schemas.UserId]struct{}{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.postById[rec.post.ID] = rec
	s.posts = insertSorted(s.posts, rec)
	s.postByAuthor[userId] = insertSorted(s.postByAuthor[userId], rec)

	return rec.post.Copy(), nil
}

func (s *MemoryStorage) GetPost(_ context.Context, postId schemas.PostId) (*schemas.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.postById[postId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.post.Copy(), nil
}

func (s *MemoryStorage) EditPost(_ context.Context, postId schemas.PostId, authorId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizePostContent(string(text))
	if err != nil {
		return nil, err
	}

	return s.mutate(postId, func(rec *record) bool {
		if rec.post.AuthorID != authorId {
			return false
		}
		rec.post.Content = content
		return true
	})
}

func (s *MemoryStorage) DeletePost(_ context.Context, postId schemas.PostId, authorId schemas.UserId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.postById[postId]
	if !ok || rec.post.AuthorID != authorId {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}

	delete(s.postById, postId)
	s.posts = without(s.posts, rec)
	s.postByAuthor[authorId] = without(s.postByAuthor[authorId], rec)
	if len(s.postByAuthor[authorId]) == 0 {
		delete(s.postByAuthor, authorId)
	}
	return nil
}

func (s *MemoryStorage) ToggleLike(_ context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	return s.mutate(postId, func(rec *record) bool {
		if _, liked := rec.likeIndex[userId]; liked {
			delete(rec.likeIndex, userId)
			likes := rec.post.Likes[:0:0]
			for _, liker := range rec.post.Likes {
				if liker != userId {
					likes = append(likes, liker)
				}
			}
			rec.post.Likes = likes
			return true
		}
		rec.likeIndex[userId] = struct{}{}
		rec.post.Likes = append(rec.post.Likes, userId)
		return true
	})
}

func (s *MemoryStorage) AppendComment(_ context.Context, postId schemas.PostId, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizeCommentContent(string(text))
	if err != nil {
		return nil, err
	}

	return s.mutate(postId, func(rec *record) bool {
		rec.post.Comments = append(rec.post.Comments, schemas.Comment{
			ID:        schemas.NewPostId(),
			AuthorID:  userId,
			Content:   content,
			CreatedAt: s.Now(),
		})
		return true
	})
}

// mutate applies change under the post lock and bumps version and updatedAt when it reports success.
func (s *MemoryStorage) mutate(postId schemas.PostId, change func(rec *record) bool) (*schemas.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.postById[postId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !change(rec) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	rec.post.Version++
	rec.post.UpdatedAt = s.Now()
	return rec.post.Copy(), nil
}

func (s *MemoryStorage) GetPostsPage(_ context.Context, filter plain.PostsFilter, offset int64, limit int) ([]*schemas.Post, int64, error) {
	if offset < 0 || limit <= 0 {
		return nil, 0, fmt.Errorf("invalid window offset=%d limit=%d", offset, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.posts
	if !filter.IsGlobal() {
		list = s.postByAuthor[filter.AuthorID]
	}

	total := int64(len(list))
	pack := make([]*schemas.Post, 0, limit)
	// list is ascending, pages walk it from the newest end
	for i := total - 1 - offset; i >= 0 && len(pack) < limit; i-- {
		rec := list[i]
		rec.mu.Lock()
		pack = append(pack, rec.post.Copy())
		rec.mu.Unlock()
	}
	return pack, total, nil
}

func less(a, b *schemas.Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.Hex() < b.ID.Hex()
}

func insertSorted(list []*record, rec *record) []*record {
	i := sort.Search(len(list), func(i int) bool {
		return less(rec.post, list[i].post)
	})
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = rec
	return list
}

func without(list []*record, rec *record) []*record {
	for i := range list {
		if list[i] == rec {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
