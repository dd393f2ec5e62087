package posts

import (
	"linkfeed/errs"
	"linkfeed/schemas"
)

// AssertOwner allows the mutation only when principal authored post.
// It runs before edit and delete; likes and comments are open to every authenticated user.
func AssertOwner(post *schemas.Post, principal schemas.UserId) error {
	if principal == "" {
		return errs.AuthRequired()
	}
	if post.AuthorID != principal {
		return errs.Forbidden("only the author can modify this post")
	}
	return nil
}
