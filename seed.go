package main

import (
	"context"
	"flag"
	"fmt"
	"linkfeed/auth"
	"linkfeed/config"
	"linkfeed/log"
	"linkfeed/schemas"
	"math/rand"
	"strings"
	"time"
)

var seedWords = strings.Fields("hiring launch team product growth remote design backend golang " +
	"conference mentoring career startup release feedback community learning")

// runSeed fills the configured backend with demo users, posts, likes and comments.
func runSeed(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	numUsers := fs.Int("users", 20, "number of users")
	numPosts := fs.Int("posts", 200, "number of posts")
	maxLikes := fs.Int("likes", 5, "max likes per post")
	maxComments := fs.Int("comments", 3, "max comments per post")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *numUsers < 1 {
		return fmt.Errorf("at least one user is required")
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	userIds := make([]schemas.UserId, 0, *numUsers)
	for i := 0; i < *numUsers; i++ {
		user, err := b.users.PutUser(ctx, &schemas.User{
			Name:  fmt.Sprintf("Member %03d", i),
			Email: fmt.Sprintf("member%03d@linkfeed.local", i),
			Bio:   sentence(r, 8),
		})
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		userIds = append(userIds, user.ID)
	}

	pick := func() schemas.UserId { return userIds[r.Intn(len(userIds))] }
	for i := 0; i < *numPosts; i++ {
		post, err := b.posts.PutPost(ctx, pick(), schemas.Text(sentence(r, 5+r.Intn(30))))
		if err != nil {
			return fmt.Errorf("seed post: %w", err)
		}
		likers := map[schemas.UserId]struct{}{}
		for n := r.Intn(*maxLikes + 1); len(likers) < n && len(likers) < len(userIds); {
			likers[pick()] = struct{}{}
		}
		for liker := range likers {
			if _, err = b.posts.ToggleLike(ctx, post.ID, liker); err != nil {
				return fmt.Errorf("seed like: %w", err)
			}
		}
		for c := r.Intn(*maxComments + 1); c > 0; c-- {
			if _, err = b.posts.AppendComment(ctx, post.ID, pick(), schemas.Text(sentence(r, 3+r.Intn(10)))); err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
		}
	}
	log.Info.Printf("seeded users=%d posts=%d in %s", *numUsers, *numPosts, time.Since(start).Truncate(time.Millisecond))

	if cfg.JWTSecret != "" {
		verifier := auth.NewVerifier(cfg.JWTSecret)
		for _, id := range userIds[:min(3, len(userIds))] {
			token, err := verifier.Issue(id, 24*time.Hour)
			if err != nil {
				return err
			}
			log.Info.Printf("token for %s: %s", id, token)
		}
	}
	return nil
}

func sentence(r *rand.Rand, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = seedWords[r.Intn(len(seedWords))]
	}
	return strings.Join(parts, " ")
}
