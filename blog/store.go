package blog

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"
)

// Repository is what handlers need from storage.
type Repository interface {
	CreateUser(username, nickname, email string, hash []byte) (int64, error)
	UserByName(username string) (User, error)
	UserByID(id int64) (User, error)

	CreatePost(authorID int64, title, body, tags string) (int64, error)
	Post(id int64) (Post, error)
	ListPosts(limit, offset int) []Post
	SearchPosts(keyword, tag string, limit, offset int) []Post
	PostsByAuthor(authorID int64, limit int) []Post
	UpdatePost(id, authorID int64, title, body, tags string) error
	DeletePost(id, authorID int64) error
	Tags(limit int) []TagCount

	AddComment(postID, userID int64, parentID *int64, body string) (int64, error)
	Comments(postID int64) []Comment
}

// MemStore keeps everything in memory. Posts are kept in creation order,
// listings walk them backwards so the newest comes first.
type MemStore struct {
	now func() time.Time

	mu       sync.RWMutex
	users    map[int64]User
	byName   map[string]int64
	posts    []Post
	comments []Comment
	lastID   struct{ user, post, comment int64 }
}

type StoreOption func(*MemStore)

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *MemStore) { s.now = now }
}

func NewMemStore(opts ...StoreOption) *MemStore {
	s := &MemStore{
		now:    time.Now,
		users:  make(map[int64]User),
		byName: make(map[string]int64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemStore) CreateUser(username, nickname, email string, hash []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[username]; ok {
		return 0, ErrUserExists
	}
	s.lastID.user++
	u := User{
		ID:           s.lastID.user,
		Username:     username,
		Nickname:     nickname,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return u.ID, nil
}

func (s *MemStore) UserByName(username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemStore) UserByID(id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemStore) CreatePost(authorID int64, title, body, tags string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[authorID]; !ok {
		return 0, ErrNotFound
	}
	now := s.now()
	s.lastID.post++
	s.posts = append(s.posts, Post{
		ID:        s.lastID.post,
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		Tags:      tags,
		IsPublic:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return s.lastID.post, nil
}

func (s *MemStore) Post(id int64) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.postIndex(id)
	if i < 0 {
		return Post{}, ErrNotFound
	}
	return s.withAuthor(s.posts[i]), nil
}

func (s *MemStore) ListPosts(limit, offset int) []Post {
	return s.SearchPosts("", "", limit, offset)
}

// SearchPosts filters by a case-insensitive keyword in title or body and
// by exact tag, blank filters match everything.
func (s *MemStore) SearchPosts(keyword, tag string, limit, offset int) []Post {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	tag = strings.TrimSpace(tag)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Post{}
	for i := len(s.posts) - 1; i >= 0 && len(out) < limit; i-- {
		p := s.posts[i]
		if keyword != "" &&
			!strings.Contains(strings.ToLower(p.Title), keyword) &&
			!strings.Contains(strings.ToLower(p.Body), keyword) {
			continue
		}
		if tag != "" && !slices.ContainsFunc(p.TagList(), func(t string) bool { return strings.EqualFold(t, tag) }) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, s.withAuthor(p))
	}
	return out
}

// PostsByAuthor lists one author's posts, newest first.
func (s *MemStore) PostsByAuthor(authorID int64, limit int) []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Post{}
	for i := len(s.posts) - 1; i >= 0 && len(out) < limit; i-- {
		if s.posts[i].AuthorID == authorID {
			out = append(out, s.withAuthor(s.posts[i]))
		}
	}
	return out
}

func (s *MemStore) UpdatePost(id, authorID int64, title, body, tags string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.postIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	p := &s.posts[i]
	if p.AuthorID != authorID {
		return ErrForbidden
	}
	p.Title, p.Body, p.Tags = title, body, tags
	p.UpdatedAt = s.now()
	return nil
}

// DeletePost removes the post and its comments.
func (s *MemStore) DeletePost(id, authorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.postIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	if s.posts[i].AuthorID != authorID {
		return ErrForbidden
	}
	s.posts = slices.Delete(s.posts, i, i+1)
	s.comments = slices.DeleteFunc(s.comments, func(c Comment) bool { return c.PostID == id })
	return nil
}

// Tags counts tag usage, most used first, ties by name.
func (s *MemStore) Tags(limit int) []TagCount {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, p := range s.posts {
		for _, t := range p.TagList() {
			counts[t]++
		}
	}
	s.mu.RUnlock()

	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Count: n})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Tag, b.Tag)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemStore) AddComment(postID, userID int64, parentID *int64, body string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.postIndex(postID) < 0 {
		return 0, ErrNotFound
	}
	if parentID != nil && !slices.ContainsFunc(s.comments, func(c Comment) bool {
		return c.ID == *parentID && c.PostID == postID
	}) {
		return 0, ErrNotFound
	}

	s.lastID.comment++
	s.comments = append(s.comments, Comment{
		ID:        s.lastID.comment,
		PostID:    postID,
		UserID:    userID,
		ParentID:  parentID,
		Body:      body,
		CreatedAt: s.now(),
	})
	return s.lastID.comment, nil
}

// Comments of a post, oldest first.
func (s *MemStore) Comments(postID int64) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Comment{}
	for _, c := range s.comments {
		if c.PostID == postID {
			c.AuthorName = s.users[c.UserID].Nickname
			out = append(out, c)
		}
	}
	return out
}

// ids only grow, so posts stay sorted by id
func (s *MemStore) postIndex(id int64) int {
	i, ok := slices.BinarySearchFunc(s.posts, id, func(p Post, id int64) int {
		return cmp.Compare(p.ID, id)
	})
	if !ok {
		return -1
	}
	return i
}

func (s *MemStore) withAuthor(p Post) Post {
	p.AuthorName = s.users[p.AuthorID].Nickname
	return p
}
