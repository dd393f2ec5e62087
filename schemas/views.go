package schemas

import (
	"time"
)

type CommentData struct {
	ID        string  `json:"id"`
	Author    Display `json:"author"`
	Content   Text    `json:"content"`
	CreatedAt string  `json:"createdAt"`
}

// PostData is a post with author identities joined in at read time.
type PostData struct {
	ID           string        `json:"id"`
	Content      Text          `json:"content"`
	Author       Display       `json:"author"`
	Likes        []string      `json:"likes"`
	LikeCount    int           `json:"likeCount"`
	Comments     []CommentData `json:"comments"`
	CommentCount int           `json:"commentCount"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
}

// ToPostData renders p with identities from profiles. Ids missing from profiles
// (deleted accounts) render with the bare id.
func (p *Post) ToPostData(profiles map[UserId]Display) PostData {
	likes := make([]string, 0, len(p.Likes))
	for _, liker := range p.Likes {
		likes = append(likes, string(liker))
	}

	comments := make([]CommentData, 0, len(p.Comments))
	for i := range p.Comments {
		c := &p.Comments[i]
		comments = append(comments, CommentData{
			ID:        c.ID.Hex(),
			Author:    lookupDisplay(profiles, c.AuthorID),
			Content:   c.Content,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}

	return PostData{
		ID:           p.ID.Hex(),
		Content:      p.Content,
		Author:       lookupDisplay(profiles, p.AuthorID),
		Likes:        likes,
		LikeCount:    len(likes),
		Comments:     comments,
		CommentCount: len(comments),
		CreatedAt:    formatTime(p.CreatedAt),
		UpdatedAt:    formatTime(p.UpdatedAt),
	}
}

type PostsPageData struct {
	Items       []PostData `json:"items"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
	TotalCount  int64      `json:"totalCount"`
}

func lookupDisplay(profiles map[UserId]Display, id UserId) Display {
	if d, ok := profiles[id]; ok {
		return d
	}
	return Display{ID: string(id)}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
