package pgstorage

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
	"time"
)

const postColumns = `id, author_id, content, version, created_at, updated_at`

type PostsStorage struct {
	db *pgxpool.Pool
}

var _ storage.Storage = (*PostsStorage)(nil)

func NewPostsStorage(db *pgxpool.Pool) *PostsStorage {
	return &PostsStorage{db: db}
}

func (s *PostsStorage) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostsStorage) PutPost(ctx context.Context, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizePostContent(string(text))
	if err != nil {
		return nil, err
	}

	now := s.Now()
	post := &schemas.Post{
		ID:        schemas.NewPostId(),
		Version:   1,
		AuthorID:  userId,
		Content:   content,
		Likes:     []schemas.UserId{},
		Comments:  []schemas.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO posts (id, author_id, content, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID.Hex(), string(post.AuthorID), string(post.Content), post.Version, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: post insert failed: %s", storage.StorageError, err.Error())
	}
	return post, nil
}

func (s *PostsStorage) GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error) {
	row := s.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, postId.Hex())
	post, err := scanPost(row)
	if err != nil {
		return nil, wrapScanError(err, postId)
	}
	if err = hydrate(ctx, s.db, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostsStorage) EditPost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizePostContent(string(text))
	if err != nil {
		return nil, err
	}

	var edited *schemas.Post
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE posts SET content = $1, version = version + 1, updated_at = $2
			WHERE id = $3 AND author_id = $4
			RETURNING `+postColumns,
			string(content), s.Now(), postId.Hex(), string(authorId),
		)
		var err error
		if edited, err = scanPost(row); err != nil {
			return wrapScanError(err, postId)
		}
		return hydrate(ctx, tx, edited)
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

func (s *PostsStorage) DeletePost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, postId.Hex(), string(authorId))
	if err != nil {
		return fmt.Errorf("%w: post delete failed: %s", storage.StorageError, err.Error())
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	return nil
}

func (s *PostsStorage) ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	var post *schemas.Post
	err := s.mutate(ctx, postId, func(tx pgx.Tx, now time.Time) error {
		tag, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postId.Hex(), string(userId))
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `INSERT INTO post_likes (post_id, user_id, liked_at) VALUES ($1, $2, $3)`,
			postId.Hex(), string(userId), now)
		return err
	}, &post)
	return post, err
}

func (s *PostsStorage) AppendComment(ctx context.Context, postId schemas.PostId, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizeCommentContent(string(text))
	if err != nil {
		return nil, err
	}

	var post *schemas.Post
	err = s.mutate(ctx, postId, func(tx pgx.Tx, now time.Time) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO post_comments (id, post_id, author_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			schemas.NewPostId().Hex(), postId.Hex(), string(userId), string(content), now,
		)
		return err
	}, &post)
	return post, err
}

// mutate locks the post row, applies change, bumps version and updatedAt and reloads the post.
func (s *PostsStorage) mutate(ctx context.Context, postId schemas.PostId, change func(tx pgx.Tx, now time.Time) error, result **schemas.Post) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postId.Hex()).Scan(&locked)
		if err != nil {
			return wrapScanError(err, postId)
		}

		now := s.Now()
		if err = change(tx, now); err != nil {
			return fmt.Errorf("%w: post mutation failed: %s", storage.StorageError, err.Error())
		}

		row := tx.QueryRow(ctx, `
			UPDATE posts SET version = version + 1, updated_at = $1
			WHERE id = $2
			RETURNING `+postColumns,
			now, postId.Hex(),
		)
		post, err := scanPost(row)
		if err != nil {
			return wrapScanError(err, postId)
		}
		if err = hydrate(ctx, tx, post); err != nil {
			return err
		}
		*result = post
		return nil
	})
}

func (s *PostsStorage) GetPostsPage(ctx context.Context, filter plain.PostsFilter, offset int64, limit int) ([]*schemas.Post, int64, error) {
	var (
		posts []*schemas.Post
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.Query(gctx, `
			SELECT `+postColumns+` FROM posts
			WHERE ($1 = '' OR author_id = $1)
			ORDER BY created_at DESC, id DESC
			OFFSET $2 LIMIT $3`,
			string(filter.AuthorID), offset, limit,
		)
		if err != nil {
			return fmt.Errorf("%w: posts query failed: %s", storage.StorageError, err.Error())
		}
		defer rows.Close()

		for rows.Next() {
			post, err := scanPost(rows)
			if err != nil {
				return fmt.Errorf("%w: posts mapping failed: %s", storage.StorageError, err.Error())
			}
			posts = append(posts, post)
		}
		if err = rows.Err(); err != nil {
			return fmt.Errorf("%w: posts query failed: %s", storage.StorageError, err.Error())
		}
		return hydrate(gctx, s.db, posts...)
	})
	g.Go(func() error {
		err := s.db.QueryRow(gctx, `SELECT count(*) FROM posts WHERE ($1 = '' OR author_id = $1)`,
			string(filter.AuthorID)).Scan(&total)
		if err != nil {
			return fmt.Errorf("%w: count failed: %s", storage.StorageError, err.Error())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if posts == nil {
		posts = []*schemas.Post{}
	}
	return posts, total, nil
}

func (s *PostsStorage) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin failed: %s", storage.StorageError, err.Error())
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit failed: %s", storage.StorageError, err.Error())
	}
	return nil
}

// hydrate loads likes and comments of posts with one query per relation.
func hydrate(ctx context.Context, q querier, posts ...*schemas.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byId := make(map[string]*schemas.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		post.Likes = []schemas.UserId{}
		post.Comments = []schemas.Comment{}
		byId[post.ID.Hex()] = post
		ids = append(ids, post.ID.Hex())
	}

	likeRows, err := q.Query(ctx, `SELECT post_id, user_id FROM post_likes WHERE post_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return fmt.Errorf("%w: likes query failed: %s", storage.StorageError, err.Error())
	}
	for likeRows.Next() {
		var postId, userId string
		if err = likeRows.Scan(&postId, &userId); err != nil {
			likeRows.Close()
			return fmt.Errorf("%w: likes mapping failed: %s", storage.StorageError, err.Error())
		}
		byId[postId].Likes = append(byId[postId].Likes, schemas.UserId(userId))
	}
	likeRows.Close()
	if err = likeRows.Err(); err != nil {
		return fmt.Errorf("%w: likes query failed: %s", storage.StorageError, err.Error())
	}

	commentRows, err := q.Query(ctx, `
		SELECT id, post_id, author_id, content, created_at FROM post_comments
		WHERE post_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return fmt.Errorf("%w: comments query failed: %s", storage.StorageError, err.Error())
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var (
			commentId, postId, authorId, content string
			createdAt                            time.Time
		)
		if err = commentRows.Scan(&commentId, &postId, &authorId, &content, &createdAt); err != nil {
			return fmt.Errorf("%w: comments mapping failed: %s", storage.StorageError, err.Error())
		}
		id, err := schemas.IDFromText(commentId)
		if err != nil {
			return fmt.Errorf("%w: malformed comment id %s", storage.StorageError, commentId)
		}
		byId[postId].Comments = append(byId[postId].Comments, schemas.Comment{
			ID:        id,
			AuthorID:  schemas.UserId(authorId),
			Content:   schemas.Text(content),
			CreatedAt: createdAt.UTC(),
		})
	}
	if err = commentRows.Err(); err != nil {
		return fmt.Errorf("%w: comments query failed: %s", storage.StorageError, err.Error())
	}
	return nil
}

func scanPost(row pgx.Row) (*schemas.Post, error) {
	var (
		rawId, authorId, content string
		post                     schemas.Post
	)
	if err := row.Scan(&rawId, &authorId, &content, &post.Version, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := schemas.IDFromText(rawId)
	if err != nil {
		return nil, fmt.Errorf("malformed post id %s", rawId)
	}
	post.ID = id
	post.AuthorID = schemas.UserId(authorId)
	post.Content = schemas.Text(content)
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return &post, nil
}

func wrapScanError(err error, postId schemas.PostId) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	return fmt.Errorf("%w: post read failed: %s", storage.StorageError, err.Error())
}
