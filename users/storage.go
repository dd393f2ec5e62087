package users

import (
	"context"
	"errors"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
	"linkfeed/schemas"
	"linkfeed/storage"
	"regexp"
	"time"
)

type UserDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	Bio            string             `bson:"bio,omitempty"`
	Location       string             `bson:"location,omitempty"`
	Website        string             `bson:"website,omitempty"`
	ProfilePicture string             `bson:"profilePicture,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d *UserDocument) toUser() *schemas.User {
	return &schemas.User{
		ID:             schemas.UserId(d.ID.Hex()),
		Name:           d.Name,
		Email:          d.Email,
		Bio:            d.Bio,
		Location:       d.Location,
		Website:        d.Website,
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt,
	}
}

// UsersStorage reads the users collection shared with the identity backend.
type UsersStorage struct {
	usersCollection *mongo.Collection
}

var _ storage.UsersStorage = (*UsersStorage)(nil)

func NewStorage(ctx context.Context, mongoUrl, dbName string) (*UsersStorage, error) {
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoUrl))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo failed: %w", err)
	}
	return NewStorageFromDatabase(ctx, mongoClient.Database(dbName))
}

func NewStorageFromDatabase(ctx context.Context, db *mongo.Database) (*UsersStorage, error) {
	usersCollection := db.Collection("users")
	if err := ensureIndexes(ctx, usersCollection); err != nil {
		return nil, fmt.Errorf("failed ensure index: %w", err)
	}
	return &UsersStorage{usersCollection: usersCollection}, nil
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"name", 1}, {"_id", 1}},
	})
	return err
}

func (s *UsersStorage) PutUser(ctx context.Context, user *schemas.User) (*schemas.User, error) {
	oid := primitive.NewObjectID()
	if user.ID != "" {
		var ok bool
		if oid, ok = objectID(user.ID); !ok {
			return nil, fmt.Errorf("malformed user id: %s", user.ID)
		}
	}
	doc := &UserDocument{
		ID:             oid,
		Name:           user.Name,
		Email:          user.Email,
		Bio:            user.Bio,
		Location:       user.Location,
		Website:        user.Website,
		ProfilePicture: user.ProfilePicture,
		CreatedAt:      user.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	mongoOpts := options.Replace().SetUpsert(true)
	_, err := s.usersCollection.ReplaceOne(ctx, bson.M{"_id": oid}, doc, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: user upsert failed: %s", storage.StorageError, err.Error())
	}
	return doc.toUser(), nil
}

func (s *UsersStorage) GetUser(ctx context.Context, userId schemas.UserId) (*schemas.User, error) {
	oid, ok := objectID(userId)
	if !ok {
		return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, userId)
	}

	var doc UserDocument
	err := s.usersCollection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, userId)
		}
		return nil, fmt.Errorf("%w: mongo search failed: %s", storage.StorageError, err.Error())
	}
	return doc.toUser(), nil
}

// GetUsers loads every known user among userIds in one query. Unknown and malformed ids are skipped.
func (s *UsersStorage) GetUsers(ctx context.Context, userIds []schemas.UserId) ([]*schemas.User, error) {
	oids := make([]primitive.ObjectID, 0, len(userIds))
	for _, id := range userIds {
		if oid, ok := objectID(id); ok {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*schemas.User{}, nil
	}

	cursor, err := s.usersCollection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("%w: mongo search failed: %s", storage.StorageError, err.Error())
	}
	return s.collect(ctx, cursor)
}

func (s *UsersStorage) SearchUsers(ctx context.Context, query string, offset int64, limit int) ([]*schemas.User, int64, error) {
	mongoQuery := bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}

	var (
		found []*schemas.User
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		findOptions := options.Find().
			SetSort(bson.D{{"name", 1}, {"_id", 1}}).
			SetSkip(offset).
			SetLimit(int64(limit))
		cursor, err := s.usersCollection.Find(gctx, mongoQuery, findOptions)
		if err != nil {
			return fmt.Errorf("%w: mongo search failed: %s", storage.StorageError, err.Error())
		}
		found, err = s.collect(gctx, cursor)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.usersCollection.CountDocuments(gctx, mongoQuery)
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

func (s *UsersStorage) collect(ctx context.Context, cursor *mongo.Cursor) ([]*schemas.User, error) {
	var docs []*UserDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: users mapping failed: %s", storage.StorageError, err.Error())
	}

	result := make([]*schemas.User, 0, len(docs))
	for i := range docs {
		result = append(result, docs[i].toUser())
	}
	return result, nil
}

func objectID(id schemas.UserId) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	return oid, err == nil
}
