package inmemory

import (
	"context"
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"linkfeed/errs"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
	"strings"
	"sync"
	"testing"
	"time"
)

// tickingClock returns a clock advancing one second per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestPutPost(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	post, err := s.PutPost(ctx, "alice", "  Hello  ")
	require.NoError(t, err)

	assert.Equal(t, schemas.Text("Hello"), post.Content)
	assert.Equal(t, schemas.UserId("alice"), post.AuthorID)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)
	assert.Equal(t, post.CreatedAt, post.UpdatedAt)

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post, stored)
}

func TestPutPostRejectsInvalidContent(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	for _, text := range []string{"", "   ", strings.Repeat("a", schemas.MaxPostLength+1)} {
		_, err := s.PutPost(ctx, "alice", schemas.Text(text))
		assert.True(t, errs.Is(err, errs.KindValidation))
	}

	_, total, err := s.GetPostsPage(ctx, plain.PostsFilter{}, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGetPostNotFound(t *testing.T) {
	s := NewInMemoryStorage()

	_, err := s.GetPost(context.Background(), schemas.NewPostId())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestEditPost(t *testing.T) {
	s := NewInMemoryStorage(WithClock(tickingClock()))
	ctx := context.Background()
	post, err := s.PutPost(ctx, "alice", "first")
	require.NoError(t, err)

	edited, err := s.EditPost(ctx, post.ID, "alice", "second")
	require.NoError(t, err)
	assert.Equal(t, schemas.Text("second"), edited.Content)
	assert.True(t, edited.UpdatedAt.After(post.UpdatedAt))
	assert.Equal(t, post.CreatedAt, edited.CreatedAt)
	assert.Equal(t, post.Version+1, edited.Version)

	_, err = s.EditPost(ctx, post.ID, "mallory", "hijack")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = s.EditPost(ctx, post.ID, "alice", "")
	assert.True(t, errs.Is(err, errs.KindValidation))

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, schemas.Text("second"), stored.Content)
}

func TestDeletePost(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()
	post, err := s.PutPost(ctx, "alice", "bye")
	require.NoError(t, err)

	err = s.DeletePost(ctx, post.ID, "bob")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	require.NoError(t, s.DeletePost(ctx, post.ID, "alice"))

	_, err = s.GetPost(ctx, post.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	err = s.DeletePost(ctx, post.ID, "alice")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	items, total, err := s.GetPostsPage(ctx, plain.PostsFilter{AuthorID: "alice"}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestToggleLikeRoundTrip(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()
	post, err := s.PutPost(ctx, "alice", "Hello")
	require.NoError(t, err)

	liked, err := s.ToggleLike(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, []schemas.UserId{"bob"}, liked.Likes)

	unliked, err := s.ToggleLike(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.Empty(t, unliked.Likes)
	assert.Equal(t, post.Version+2, unliked.Version)

	_, err = s.ToggleLike(ctx, schemas.NewPostId(), "bob")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestToggleLikeConcurrentUsers(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()
	post, err := s.PutPost(ctx, "alice", "popular")
	require.NoError(t, err)

	const likers = 50
	var wg sync.WaitGroup
	for i := 0; i < likers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ToggleLike(ctx, post.ID, schemas.UserId(fmt.Sprintf("user-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Likes, likers)
}

func TestAppendCommentKeepsOrder(t *testing.T) {
	s := NewInMemoryStorage(WithClock(tickingClock()))
	ctx := context.Background()
	post, err := s.PutPost(ctx, "alice", "Hello")
	require.NoError(t, err)

	first, err := s.AppendComment(ctx, post.ID, "bob", " first ")
	require.NoError(t, err)
	require.Len(t, first.Comments, 1)

	second, err := s.AppendComment(ctx, post.ID, "carol", "second")
	require.NoError(t, err)
	require.Len(t, second.Comments, 2)

	assert.Equal(t, schemas.Text("first"), second.Comments[0].Content)
	assert.Equal(t, schemas.UserId("bob"), second.Comments[0].AuthorID)
	assert.Equal(t, schemas.Text("second"), second.Comments[1].Content)
	assert.True(t, second.Comments[1].CreatedAt.After(second.Comments[0].CreatedAt))

	_, err = s.AppendComment(ctx, post.ID, "bob", schemas.Text(strings.Repeat("x", schemas.MaxCommentLength+1)))
	assert.True(t, errs.Is(err, errs.KindValidation))

	stored, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Comments, 2)
}

func TestGetPostsPageOrdering(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryStorage(WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	var created []*schemas.Post
	for i := 0; i < 3; i++ {
		post, err := s.PutPost(ctx, "alice", schemas.Text(fmt.Sprintf("post %d", i)))
		require.NoError(t, err)
		created = append(created, post)
	}

	items, total, err := s.GetPostsPage(ctx, plain.PostsFilter{}, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	// equal timestamps fall back to id descending
	for i := 1; i < len(items); i++ {
		assert.Greater(t, items[i-1].ID.Hex(), items[i].ID.Hex())
	}
}

func TestGetPostsPageWindowAndFilter(t *testing.T) {
	s := NewInMemoryStorage(WithClock(tickingClock()))
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := s.PutPost(ctx, "alice", schemas.Text(fmt.Sprintf("alice %d", i)))
		require.NoError(t, err)
		if i%5 == 0 {
			_, err = s.PutPost(ctx, "bob", schemas.Text(fmt.Sprintf("bob %d", i)))
			require.NoError(t, err)
		}
	}

	page, total, err := s.GetPostsPage(ctx, plain.PostsFilter{AuthorID: "alice"}, 10, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)
	require.Len(t, page, 5)
	assert.Equal(t, schemas.Text("alice 4"), page[0].Content)
	assert.Equal(t, schemas.Text("alice 0"), page[4].Content)

	all, total, err := s.GetPostsPage(ctx, plain.PostsFilter{}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 18, total)
	assert.Len(t, all, 18)
	assert.Equal(t, schemas.Text("alice 14"), all[0].Content)

	beyond, total, err := s.GetPostsPage(ctx, plain.PostsFilter{}, 100, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 18, total)
	assert.Empty(t, beyond)
}

func TestUsersStorage(t *testing.T) {
	s := NewInMemoryUsersStorage()
	ctx := context.Background()

	alice, err := s.PutUser(ctx, &schemas.User{Name: "Alice Smith"})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)
	_, err = s.PutUser(ctx, &schemas.User{ID: "b1", Name: "Bob"})
	require.NoError(t, err)
	_, err = s.PutUser(ctx, &schemas.User{ID: "c1", Name: "Alicia"})
	require.NoError(t, err)

	got, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.Name)

	_, err = s.GetUser(ctx, "nobody")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	batch, err := s.GetUsers(ctx, []schemas.UserId{alice.ID, "nobody", "b1"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	found, total, err := s.SearchUsers(ctx, "ALI", 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, found, 1)
	assert.Equal(t, "Alice Smith", found[0].Name)

	found, _, err = s.SearchUsers(ctx, "ali", 5, 1)
	require.NoError(t, err)
	assert.Empty(t, found)
}
