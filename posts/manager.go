package posts

import (
	"context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"linkfeed/errs"
	"linkfeed/events"
	"linkfeed/log"
	"linkfeed/schemas"
	"linkfeed/storage"
	"time"
)

var tracer = otel.Tracer("linkfeed/posts")

type DisplayResolver interface {
	ResolveDisplay(ctx context.Context, ids []schemas.UserId) (map[schemas.UserId]schemas.Display, error)
}

type PostsManager struct {
	postStorage storage.Storage
	profiles    DisplayResolver
	publisher   events.Publisher
}

func NewPostsManager(postStorage storage.Storage, profiles DisplayResolver, publisher events.Publisher) *PostsManager {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &PostsManager{
		postStorage: postStorage,
		profiles:    profiles,
		publisher:   publisher,
	}
}

func (pm *PostsManager) Create(ctx context.Context, principal schemas.UserId, content string) (_ *schemas.PostData, err error) {
	ctx, span := tracer.Start(ctx, "posts.Create")
	defer func() { finish(span, err) }()

	if principal == "" {
		return nil, errs.AuthRequired()
	}
	post, err := pm.postStorage.PutPost(ctx, principal, schemas.Text(content))
	if err != nil {
		return nil, storage.Fault(err, "post", "")
	}
	span.SetAttributes(attribute.String("post.id", post.ID.Hex()))

	pm.publish(ctx, events.PostCreated, post, principal, "")
	return pm.render(ctx, post), nil
}

func (pm *PostsManager) Get(ctx context.Context, rawPostId string) (_ *schemas.PostData, err error) {
	ctx, span := tracer.Start(ctx, "posts.Get", trace.WithAttributes(attribute.String("post.id", rawPostId)))
	defer func() { finish(span, err) }()

	post, err := pm.load(ctx, rawPostId)
	if err != nil {
		return nil, err
	}
	profiles, err := pm.profiles.ResolveDisplay(ctx, schemas.ParticipantIDs(post))
	if err != nil {
		return nil, err
	}
	view := post.ToPostData(profiles)
	return &view, nil
}

func (pm *PostsManager) Edit(ctx context.Context, principal schemas.UserId, rawPostId, content string) (_ *schemas.PostData, err error) {
	ctx, span := tracer.Start(ctx, "posts.Edit", trace.WithAttributes(attribute.String("post.id", rawPostId)))
	defer func() { finish(span, err) }()

	if principal == "" {
		return nil, errs.AuthRequired()
	}
	post, err := pm.load(ctx, rawPostId)
	if err != nil {
		return nil, err
	}
	if err = AssertOwner(post, principal); err != nil {
		return nil, err
	}

	edited, err := pm.postStorage.EditPost(ctx, post.ID, principal, schemas.Text(content))
	if err != nil {
		return nil, storage.Fault(err, "post", rawPostId)
	}

	pm.publish(ctx, events.PostUpdated, edited, principal, "")
	return pm.render(ctx, edited), nil
}

func (pm *PostsManager) Delete(ctx context.Context, principal schemas.UserId, rawPostId string) (err error) {
	ctx, span := tracer.Start(ctx, "posts.Delete", trace.WithAttributes(attribute.String("post.id", rawPostId)))
	defer func() { finish(span, err) }()

	if principal == "" {
		return errs.AuthRequired()
	}
	post, err := pm.load(ctx, rawPostId)
	if err != nil {
		return err
	}
	if err = AssertOwner(post, principal); err != nil {
		return err
	}

	if err = pm.postStorage.DeletePost(ctx, post.ID, principal); err != nil {
		return storage.Fault(err, "post", rawPostId)
	}
	pm.publish(ctx, events.PostDeleted, post, principal, "")
	return nil
}

// ToggleLike adds the principal's like when absent and removes it otherwise.
func (pm *PostsManager) ToggleLike(ctx context.Context, principal schemas.UserId, rawPostId string) (_ *schemas.PostData, err error) {
	ctx, span := tracer.Start(ctx, "posts.ToggleLike", trace.WithAttributes(attribute.String("post.id", rawPostId)))
	defer func() { finish(span, err) }()

	if principal == "" {
		return nil, errs.AuthRequired()
	}
	postId, err := parsePostId(rawPostId)
	if err != nil {
		return nil, err
	}

	post, err := pm.postStorage.ToggleLike(ctx, postId, principal)
	if err != nil {
		return nil, storage.Fault(err, "post", rawPostId)
	}

	subject := events.PostUnliked
	if post.HasLike(principal) {
		subject = events.PostLiked
	}
	span.SetAttributes(attribute.Bool("post.liked", subject == events.PostLiked))
	pm.publish(ctx, subject, post, principal, "")
	return pm.render(ctx, post), nil
}

func (pm *PostsManager) AddComment(ctx context.Context, principal schemas.UserId, rawPostId, content string) (_ *schemas.PostData, err error) {
	ctx, span := tracer.Start(ctx, "posts.AddComment", trace.WithAttributes(attribute.String("post.id", rawPostId)))
	defer func() { finish(span, err) }()

	if principal == "" {
		return nil, errs.AuthRequired()
	}
	postId, err := parsePostId(rawPostId)
	if err != nil {
		return nil, err
	}

	post, err := pm.postStorage.AppendComment(ctx, postId, principal, schemas.Text(content))
	if err != nil {
		return nil, storage.Fault(err, "post", rawPostId)
	}

	commentId := ""
	if n := len(post.Comments); n > 0 {
		commentId = post.Comments[n-1].ID.Hex()
	}
	pm.publish(ctx, events.PostCommented, post, principal, commentId)
	return pm.render(ctx, post), nil
}

func (pm *PostsManager) load(ctx context.Context, rawPostId string) (*schemas.Post, error) {
	postId, err := parsePostId(rawPostId)
	if err != nil {
		return nil, err
	}
	post, err := pm.postStorage.GetPost(ctx, postId)
	if err != nil {
		return nil, storage.Fault(err, "post", rawPostId)
	}
	return post, nil
}

// render joins display identities into a post that was already written.
// A lookup failure degrades to bare ids instead of failing the committed mutation.
func (pm *PostsManager) render(ctx context.Context, post *schemas.Post) *schemas.PostData {
	profiles, err := pm.profiles.ResolveDisplay(ctx, schemas.ParticipantIDs(post))
	if err != nil {
		log.Warn.Printf("resolve display for post %s failed: %s", post.ID, err)
		profiles = nil
	}
	view := post.ToPostData(profiles)
	return &view
}

func (pm *PostsManager) publish(ctx context.Context, subject string, post *schemas.Post, actor schemas.UserId, commentId string) {
	event := events.PostEvent{
		Subject:    subject,
		PostID:     post.ID.Hex(),
		AuthorID:   string(post.AuthorID),
		ActorID:    string(actor),
		CommentID:  commentId,
		Version:    post.Version,
		OccurredAt: time.Now().UTC(),
	}
	if err := pm.publisher.Publish(ctx, event); err != nil {
		log.Warn.Printf("publish %s for post %s failed: %s", subject, event.PostID, err)
	}
}

func parsePostId(raw string) (schemas.PostId, error) {
	postId, err := schemas.IDFromText(raw)
	if err != nil {
		return schemas.PostId{}, errs.NotFound("post", raw)
	}
	return postId, nil
}

func finish(span trace.Span, err error) {
	if err != nil && errs.KindOf(err) != errs.KindValidation {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
