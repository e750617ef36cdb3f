// Package blog holds the business side: users, posts, comments, login,
// html pages and the JSON api. Everything here talks to the server only
// through router.Handler.
package blog

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Post struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Tags       string    `json:"tags,omitempty"` // comma separated
	IsPublic   bool      `json:"is_public"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TagList splits Tags, dropping blanks.
func (p Post) TagList() []string {
	var out []string
	for t := range strings.SplitSeq(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type Comment struct {
	ID         int64     `json:"id"`
	PostID     int64     `json:"post_id"`
	UserID     int64     `json:"user_id"`
	ParentID   *int64    `json:"parent_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// TagCount is one entry of the category list on the home page.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}
