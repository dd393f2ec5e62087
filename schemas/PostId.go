package schemas

import (
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostId is a Mongo ObjectID. On the wire and in text columns it is the 24 char hex form,
// in Mongo documents it is a native ObjectID.
type PostId primitive.ObjectID

// CommentId identifies a comment inside its post.
type CommentId = PostId

const LEN = 12

func NewPostId() PostId {
	return PostId(primitive.NewObjectID())
}

func IDFromText(s string) (PostId, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return PostId{}, fmt.Errorf("malformed id %q: %w", s, err)
	}
	return PostId(oid), nil
}

func (id PostId) Hex() string {
	return primitive.ObjectID(id).Hex()
}

func (id PostId) String() string {
	return id.Hex()
}

func (id PostId) IsZero() bool {
	return primitive.ObjectID(id).IsZero()
}

func (id PostId) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *PostId) UnmarshalText(text []byte) error {
	parsed, err := IDFromText(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id PostId) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.ObjectID(id))
}

func (id *PostId) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	oid, ok := bson.RawValue{Type: t, Value: data}.ObjectIDOK()
	if !ok {
		return fmt.Errorf("cannot decode %s as post id", t)
	}
	*id = PostId(oid)
	return nil
}
