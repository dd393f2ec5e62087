package users

import (
	"context"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"linkfeed/errs"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
	"strings"
	"time"
)

const (
	DefaultDisplayCacheSize = 4096
	DefaultDisplayCacheTTL  = time.Minute
)

var tracer = otel.Tracer("linkfeed/users")

type UsersPage struct {
	Users       []*schemas.User
	CurrentPage int
	TotalPages  int
	TotalCount  int64
}

// Directory answers identity questions for the feed: does a user exist, what is
// their profile, and how should a batch of ids be displayed.
type Directory struct {
	usersStorage storage.UsersStorage
	displayCache *expirable.LRU[schemas.UserId, schemas.Display]
}

func NewDirectory(usersStorage storage.UsersStorage, cacheSize int, cacheTTL time.Duration) *Directory {
	if cacheSize <= 0 {
		cacheSize = DefaultDisplayCacheSize
	}
	return &Directory{
		usersStorage: usersStorage,
		displayCache: expirable.NewLRU[schemas.UserId, schemas.Display](cacheSize, nil, cacheTTL),
	}
}

func (d *Directory) GetProfile(ctx context.Context, userId schemas.UserId) (*schemas.User, error) {
	user, err := d.usersStorage.GetUser(ctx, userId)
	if err != nil {
		return nil, storage.Fault(err, "user", string(userId))
	}
	d.displayCache.Add(user.ID, user.ToDisplay())
	return user, nil
}

// Exists reports whether userId is a known user. Lookup failures are errors, never "false".
func (d *Directory) Exists(ctx context.Context, userId schemas.UserId) (bool, error) {
	if _, ok := d.displayCache.Get(userId); ok {
		return true, nil
	}
	_, err := d.GetProfile(ctx, userId)
	switch {
	case err == nil:
		return true, nil
	case errs.Is(err, errs.KindNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ResolveDisplay returns display identities for ids, querying the store once for all cache misses.
// Unknown users resolve to a display carrying only the id and are not cached.
func (d *Directory) ResolveDisplay(ctx context.Context, ids []schemas.UserId) (map[schemas.UserId]schemas.Display, error) {
	ctx, span := tracer.Start(ctx, "users.ResolveDisplay")
	defer span.End()

	resolved := make(map[schemas.UserId]schemas.Display, len(ids))
	var misses []schemas.UserId
	for _, id := range ids {
		if display, ok := d.displayCache.Get(id); ok {
			resolved[id] = display
			continue
		}
		misses = append(misses, id)
	}
	span.SetAttributes(attribute.Int("users.requested", len(ids)), attribute.Int("users.cache_misses", len(misses)))
	if len(misses) == 0 {
		return resolved, nil
	}

	found, err := d.usersStorage.GetUsers(ctx, misses)
	if err != nil {
		return nil, errs.Storage(err)
	}
	for _, user := range found {
		display := user.ToDisplay()
		d.displayCache.Add(user.ID, display)
		resolved[user.ID] = display
	}
	for _, id := range misses {
		if _, ok := resolved[id]; !ok {
			resolved[id] = schemas.Display{ID: string(id)}
		}
	}
	return resolved, nil
}

// Search finds users whose name contains query, case-insensitively.
func (d *Directory) Search(ctx context.Context, query string, req plain.PageRequest) (*UsersPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.Validation("search query is required")
	}
	offset, size, err := plain.CorrectDestruct(req)
	if err != nil {
		return nil, err
	}

	found, total, err := d.usersStorage.SearchUsers(ctx, query, offset, size)
	if err != nil {
		return nil, errs.Storage(err)
	}
	return &UsersPage{
		Users:       found,
		CurrentPage: req.Page,
		TotalPages:  plain.TotalPages(total, size),
		TotalCount:  total,
	}, nil
}
