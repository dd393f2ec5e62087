package events

import (
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestConnectWithoutURLIsNoop(t *testing.T) {
	publisher, closeFn, err := Connect("")
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, Noop{}, publisher)
	assert.NoError(t, publisher.Publish(context.Background(), PostEvent{Subject: PostCreated}))
}

func TestPostEventPayload(t *testing.T) {
	raw, err := json.Marshal(PostEvent{
		Subject:    PostLiked,
		PostID:     "p1",
		AuthorID:   "alice",
		ActorID:    "bob",
		Version:    2,
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"postId":"p1","authorId":"alice","actorId":"bob","version":2,"occurredAt":"2024-01-01T00:00:00Z"}`, string(raw))
}
