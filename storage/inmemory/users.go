package inmemory

import (
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"linkfeed/schemas"
	"linkfeed/storage"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemoryUsersStorage struct {
	mu    sync.RWMutex
	users map[schemas.UserId]*schemas.User
}

var _ storage.UsersStorage = (*MemoryUsersStorage)(nil)

func NewInMemoryUsersStorage() *MemoryUsersStorage {
	return &MemoryUsersStorage{users: map[schemas.UserId]*schemas.User{}}
}

// PutUser inserts or replaces user. An empty ID gets a fresh ObjectID hex.
func (s *MemoryUsersStorage) PutUser(_ context.Context, user *schemas.User) (*schemas.User, error) {
	stored := *user
	if stored.ID == "" {
		stored.ID = schemas.UserId(primitive.NewObjectID().Hex())
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[stored.ID] = &stored

	result := stored
	return &result, nil
}

func (s *MemoryUsersStorage) GetUser(_ context.Context, userId schemas.UserId) (*schemas.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userId]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, userId)
	}
	result := *user
	return &result, nil
}

func (s *MemoryUsersStorage) GetUsers(_ context.Context, userIds []schemas.UserId) ([]*schemas.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]*schemas.User, 0, len(userIds))
	for _, id := range userIds {
		if user, ok := s.users[id]; ok {
			result := *user
			found = append(found, &result)
		}
	}
	return found, nil
}

func (s *MemoryUsersStorage) SearchUsers(_ context.Context, query string, offset int64, limit int) ([]*schemas.User, int64, error) {
	needle := strings.ToLower(query)

	s.mu.RLock()
	var matched []*schemas.User
	for _, user := range s.users {
		if strings.Contains(strings.ToLower(user.Name), needle) {
			result := *user
			matched = append(matched, &result)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if offset >= total {
		return []*schemas.User{}, total, nil
	}
	end := offset + int64(limit)
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
