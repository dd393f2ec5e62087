package mongostorage

import (
	"context"
	"errors"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
	"linkfeed/plain"
	"linkfeed/schemas"
	"linkfeed/storage"
	"time"
)

const collName = "posts"

type PostsStorage struct {
	postsCollection *mongo.Collection
}

var _ storage.Storage = (*PostsStorage)(nil)

// NewStorage connects to mongoURL and ensures the feed indexes on the posts collection.
func NewStorage(ctx context.Context, mongoURL string, mongoName string) (*PostsStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo failed: %w", err)
	}
	return NewStorageFromDatabase(ctx, client.Database(mongoName))
}

func NewStorageFromDatabase(ctx context.Context, db *mongo.Database) (*PostsStorage, error) {
	postsCollection := db.Collection(collName)
	if err := ensureIndexes(ctx, postsCollection); err != nil {
		return nil, err
	}
	return &PostsStorage{postsCollection: postsCollection}, nil
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{"authorId", 1}, {"createdAt", -1}, {"_id", -1}}},
		{Keys: bson.D{{"createdAt", -1}, {"_id", -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to ensure indexes %w", err)
	}
	return nil
}

func (s *PostsStorage) PutPost(ctx context.Context, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizePostContent(string(text))
	if err != nil {
		return nil, err
	}

	now := s.Now()
	newPost := &schemas.Post{
		ID:        schemas.NewPostId(),
		Version:   1,
		AuthorID:  userId,
		Content:   content,
		Likes:     []schemas.UserId{},
		Comments:  []schemas.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.postsCollection.InsertOne(ctx, newPost)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrCollision, newPost.ID)
		}
		return nil, fmt.Errorf("%w: insertion failed: %s", storage.StorageError, err.Error())
	}
	return newPost, nil
}

func (s *PostsStorage) GetPost(ctx context.Context, postId schemas.PostId) (*schemas.Post, error) {
	var post schemas.Post
	err := s.postsCollection.FindOne(ctx, bson.M{"_id": postId}).Decode(&post)
	if err != nil {
		return nil, s.wrapFindError(postId, err)
	}
	return &post, nil
}

func (s *PostsStorage) EditPost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizePostContent(string(text))
	if err != nil {
		return nil, err
	}

	mongoSelector := bson.D{{"_id", postId}, {"authorId", string(authorId)}}
	mongoCommand := bson.D{
		{
			"$set", bson.D{
				{"text", content},
				{"updatedAt", s.Now()},
			},
		},
		{
			"$inc", bson.D{{"version", 1}},
		},
	}
	return s.findOneAndUpdate(ctx, postId, mongoSelector, mongoCommand)
}

func (s *PostsStorage) DeletePost(ctx context.Context, postId schemas.PostId, authorId schemas.UserId) error {
	result, err := s.postsCollection.DeleteOne(ctx, bson.D{{"_id", postId}, {"authorId", string(authorId)}})
	if err != nil {
		return fmt.Errorf("%w: delete failed: %s", storage.StorageError, err.Error())
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	return nil
}

// ToggleLike flips userId's membership in one pipeline update, so concurrent
// toggles by different users never overwrite each other.
func (s *PostsStorage) ToggleLike(ctx context.Context, postId schemas.PostId, userId schemas.UserId) (*schemas.Post, error) {
	uid := string(userId)
	likes := bson.D{{"$ifNull", bson.A{"$likes", bson.A{}}}}
	pipeline := mongo.Pipeline{
		{{"$set", bson.D{
			{"likes", bson.D{{"$cond", bson.D{
				{"if", bson.D{{"$in", bson.A{uid, likes}}}},
				{"then", bson.D{{"$filter", bson.D{
					{"input", likes},
					{"cond", bson.D{{"$ne", bson.A{"$$this", uid}}}},
				}}}},
				{"else", bson.D{{"$concatArrays", bson.A{likes, bson.A{uid}}}}},
			}}}},
			{"updatedAt", s.Now()},
			{"version", bson.D{{"$add", bson.A{"$version", 1}}}},
		}}},
	}
	return s.findOneAndUpdate(ctx, postId, bson.D{{"_id", postId}}, pipeline)
}

func (s *PostsStorage) AppendComment(ctx context.Context, postId schemas.PostId, userId schemas.UserId, text schemas.Text) (*schemas.Post, error) {
	content, err := schemas.NormalizeCommentContent(string(text))
	if err != nil {
		return nil, err
	}

	now := s.Now()
	comment := schemas.Comment{
		ID:        schemas.NewPostId(),
		AuthorID:  userId,
		Content:   content,
		CreatedAt: now,
	}
	mongoCommand := bson.D{
		{"$push", bson.D{{"comments", comment}}},
		{"$set", bson.D{{"updatedAt", now}}},
		{"$inc", bson.D{{"version", 1}}},
	}
	return s.findOneAndUpdate(ctx, postId, bson.D{{"_id", postId}}, mongoCommand)
}

func (s *PostsStorage) GetPostsPage(ctx context.Context, filter plain.PostsFilter, offset int64, limit int) ([]*schemas.Post, int64, error) {
	mongoFilter := bson.M{}
	if !filter.IsGlobal() {
		mongoFilter["authorId"] = string(filter.AuthorID)
	}

	var (
		postList []*schemas.Post
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		findOptions := options.Find().
			SetSort(bson.D{{"createdAt", -1}, {"_id", -1}}).
			SetSkip(offset).
			SetLimit(int64(limit))
		cursor, err := s.postsCollection.Find(gctx, mongoFilter, findOptions)
		if err != nil {
			return fmt.Errorf("%w: search failed: %s", storage.StorageError, err.Error())
		}
		if err = cursor.All(gctx, &postList); err != nil {
			return fmt.Errorf("%w: posts mapping failed: %s", storage.StorageError, err.Error())
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = s.postsCollection.CountDocuments(gctx, mongoFilter)
		if err != nil {
			return fmt.Errorf("%w: count failed: %s", storage.StorageError, err.Error())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if postList == nil {
		postList = []*schemas.Post{}
	}
	return postList, total, nil
}

func (s *PostsStorage) findOneAndUpdate(ctx context.Context, postId schemas.PostId, selector interface{}, update interface{}) (*schemas.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	result := s.postsCollection.FindOneAndUpdate(ctx, selector, update, opts)

	var updated schemas.Post
	if err := result.Decode(&updated); err != nil {
		return nil, s.wrapFindError(postId, err)
	}
	return &updated, nil
}

func (s *PostsStorage) wrapFindError(postId schemas.PostId, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, postId)
	}
	return fmt.Errorf("%w: mongo error: %s", storage.StorageError, err.Error())
}

func (s *PostsStorage) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
