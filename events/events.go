// Package events publishes post domain events to NATS for other backends.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"linkfeed/log"
	"time"
)

const (
	PostCreated   = "post.created"
	PostUpdated   = "post.updated"
	PostDeleted   = "post.deleted"
	PostLiked     = "post.liked"
	PostUnliked   = "post.unliked"
	PostCommented = "post.commented"
)

type PostEvent struct {
	Subject    string    `json:"-"`
	PostID     string    `json:"postId"`
	AuthorID   string    `json:"authorId"`
	ActorID    string    `json:"actorId"`
	CommentID  string    `json:"commentId,omitempty"`
	Version    int       `json:"version,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event PostEvent) error
}

type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

// Connect dials url and returns a publisher over it. An empty url gives a Noop publisher.
func Connect(url string) (Publisher, func(), error) {
	if url == "" {
		return Noop{}, func() {}, nil
	}
	nc, err := nats.Connect(url, nats.Name("linkfeed"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats failed: %w", err)
	}
	return NewNatsPublisher(nc), nc.Close, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, event PostEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: event.Subject,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	log.Debug.Printf("publishing %s for post %s", event.Subject, event.PostID)
	return p.nc.PublishMsg(msg)
}

type Noop struct{}

func (Noop) Publish(context.Context, PostEvent) error {
	return nil
}
