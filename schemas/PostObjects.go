package schemas

import (
	"github.com/rivo/uniseg"
	"linkfeed/errs"
	"strings"
	"time"
)

type UserId string
type Text string

const (
	MaxPostLength    = 1000
	MaxCommentLength = 500
)

type Comment struct {
	ID        CommentId `bson:"_id"`
	AuthorID  UserId    `bson:"authorId"`
	Content   Text      `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
}

// Post is the stored entity. Likes is a set kept in like order; Comments is append-only.
type Post struct {
	ID        PostId    `bson:"_id"`
	Version   int       `bson:"version"`
	AuthorID  UserId    `bson:"authorId"`
	Content   Text      `bson:"text"`
	Likes     []UserId  `bson:"likes"`
	Comments  []Comment `bson:"comments"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (p *Post) HasLike(userId UserId) bool {
	for _, liker := range p.Likes {
		if liker == userId {
			return true
		}
	}
	return false
}

func (p *Post) GetVersion() int {
	return p.Version
}

// Copy returns a deep copy so callers never share the likes or comments backing arrays.
func (p Post) Copy() *Post {
	p.Likes = append(make([]UserId, 0, len(p.Likes)), p.Likes...)
	p.Comments = append(make([]Comment, 0, len(p.Comments)), p.Comments...)
	return &p
}

// ParticipantIDs lists the post author and every comment author once, in first-seen order.
func ParticipantIDs(posts ...*Post) []UserId {
	seen := make(map[UserId]struct{})
	var ids []UserId
	add := func(id UserId) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, p := range posts {
		add(p.AuthorID)
		for i := range p.Comments {
			add(p.Comments[i].AuthorID)
		}
	}
	return ids
}

// NormalizePostContent trims raw and checks it holds 1..MaxPostLength characters.
// Characters are grapheme clusters, so an emoji with modifiers counts once.
func NormalizePostContent(raw string) (Text, error) {
	return normalize("post content", raw, MaxPostLength)
}

func NormalizeCommentContent(raw string) (Text, error) {
	return normalize("comment content", raw, MaxCommentLength)
}

func normalize(field, raw string, max int) (Text, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errs.Validation("%s is required", field)
	}
	if n := uniseg.GraphemeClusterCount(trimmed); n > max {
		return "", errs.Validation("%s cannot be more than %d characters, got %d", field, max, n)
	}
	return Text(trimmed), nil
}
