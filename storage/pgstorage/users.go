package pgstorage

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
	"linkfeed/schemas"
	"linkfeed/storage"
	"strings"
	"time"
)

const userColumns = `id, name, email, bio, location, website, profile_picture, created_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type UsersStorage struct {
	db *pgxpool.Pool
}

var _ storage.UsersStorage = (*UsersStorage)(nil)

func NewUsersStorage(db *pgxpool.Pool) *UsersStorage {
	return &UsersStorage{db: db}
}

func (s *UsersStorage) PutUser(ctx context.Context, user *schemas.User) (*schemas.User, error) {
	stored := *user
	if stored.ID == "" {
		stored.ID = schemas.UserId(primitive.NewObjectID().Hex())
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, email = EXCLUDED.email, bio = EXCLUDED.bio,
			location = EXCLUDED.location, website = EXCLUDED.website,
			profile_picture = EXCLUDED.profile_picture`,
		string(stored.ID), stored.Name, stored.Email, stored.Bio, stored.Location,
		stored.Website, stored.ProfilePicture, stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: user upsert failed: %s", storage.StorageError, err.Error())
	}
	return &stored, nil
}

func (s *UsersStorage) GetUser(ctx context.Context, userId schemas.UserId) (*schemas.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(userId)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, userId)
		}
		return nil, fmt.Errorf("%w: user read failed: %s", storage.StorageError, err.Error())
	}
	return user, nil
}

func (s *UsersStorage) GetUsers(ctx context.Context, userIds []schemas.UserId) ([]*schemas.User, error) {
	if len(userIds) == 0 {
		return []*schemas.User{}, nil
	}
	ids := make([]string, 0, len(userIds))
	for _, id := range userIds {
		ids = append(ids, string(id))
	}

	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: users query failed: %s", storage.StorageError, err.Error())
	}
	return collectUsers(rows)
}

func (s *UsersStorage) SearchUsers(ctx context.Context, query string, offset int64, limit int) ([]*schemas.User, int64, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"

	var (
		found []*schemas.User
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.Query(gctx, `
			SELECT `+userColumns+` FROM users
			WHERE name ILIKE $1
			ORDER BY name, id
			OFFSET $2 LIMIT $3`,
			pattern, offset, limit,
		)
		if err != nil {
			return fmt.Errorf("%w: users query failed: %s", storage.StorageError, err.Error())
		}
		found, err = collectUsers(rows)
		return err
	})
	g.Go(func() error {
		err := s.db.QueryRow(gctx, `SELECT count(*) FROM users WHERE name ILIKE $1`, pattern).Scan(&total)
		if err != nil {
			return fmt.Errorf("%w: count failed: %s", storage.StorageError, err.Error())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return found, total, nil
}

func collectUsers(rows pgx.Rows) ([]*schemas.User, error) {
	defer rows.Close()
	result := []*schemas.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: users mapping failed: %s", storage.StorageError, err.Error())
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: users query failed: %s", storage.StorageError, err.Error())
	}
	return result, nil
}

func scanUser(row pgx.Row) (*schemas.User, error) {
	var (
		id   string
		user schemas.User
	)
	err := row.Scan(&id, &user.Name, &user.Email, &user.Bio, &user.Location, &user.Website, &user.ProfilePicture, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.ID = schemas.UserId(id)
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
