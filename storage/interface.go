package storage

import (
	"context"
	"errors"
	"fmt"
	"linkfeed/plain"
	"linkfeed/schemas"
)

var (
	StorageError = errors.New("storage")
	ErrCollision = fmt.Errorf("%w.collision", StorageError)
	ErrNotFound  = fmt.Errorf("%w.not_found", StorageError)
)

// Storage is the post store. Implementations validate content themselves and make
// ToggleLike and AppendComment atomic per post.
type Storage interface {
	PutPost(ctx context.Context, userId schemas.UserId, text schemas.Text) (*schemas.Post, error)
	GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error)
	EditPost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId, text schemas.Text) (*schemas.Post, error)
	DeletePost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId) error
	ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error)
	AppendComment(ctx context.Context, postId schemas.PostId, userId schemas.UserId, text schemas.Text) (*schemas.Post, error)
	GetPostsPage(ctx context.Context, filter plain.PostsFilter, offset int64, limit int) (_ []*schemas.Post, totalCount int64, _ error)
}

type UsersStorage interface {
	PutUser(ctx context.Context, user *schemas.User) (*schemas.User, error)
	GetUser(ctx context.Context, userId schemas.UserId) (*schemas.User, error)
	GetUsers(ctx context.Context, userIds []schemas.UserId) ([]*schemas.User, error)
	SearchUsers(ctx context.Context, query string, offset int64, limit int) (_ []*schemas.User, totalCount int64, _ error)
}
