package blog

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/s00inx/sockblog/server/metrics"
	"github.com/s00inx/sockblog/server/protocol"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type jsonMap = map[string]any

func fail(status int, msg string) *protocol.Response {
	return protocol.JSON(status, jsonMap{"error": msg})
}

// first missing field, "" when all are present
func missing(req *protocol.Request, fields ...string) string {
	for _, f := range fields {
		if req.Value(f) == "" {
			return f
		}
	}
	return ""
}

// limit and offset from the query string
func pageArgs(req *protocol.Request) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0
	if v, has := req.Query["limit"]; has {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		limit = min(n, maxLimit)
	}
	if v, has := req.Query["offset"]; has {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

func postID(req *protocol.Request) (int64, bool) {
	id, err := strconv.ParseInt(req.Param("post_id"), 10, 64)
	return id, err == nil && id > 0
}

func (a *App) requireUser(req *protocol.Request) (User, *protocol.Response) {
	u, ok := a.auth.Current(req)
	if !ok {
		return User{}, fail(401, "login required")
	}
	return u, nil
}

func (a *App) register(req *protocol.Request) (*protocol.Response, error) {
	if f := missing(req, "username", "password", "nickname"); f != "" {
		return fail(400, "missing field "+f), nil
	}

	id, err := a.auth.Register(
		strings.TrimSpace(req.Value("username")),
		req.Value("password"),
		strings.TrimSpace(req.Value("nickname")),
		strings.TrimSpace(req.Value("email")),
	)
	switch {
	case errors.Is(err, ErrUserExists):
		return fail(400, "username already taken"), nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return fail(400, "password too long"), nil
	case err != nil:
		return nil, err
	}

	a.log.Info("user registered", zap.Int64("user_id", id))
	return protocol.JSON(201, jsonMap{"user_id": id}), nil
}

func (a *App) login(req *protocol.Request) (*protocol.Response, error) {
	if f := missing(req, "username", "password"); f != "" {
		return fail(400, "missing field "+f), nil
	}

	token, err := a.auth.Login(strings.TrimSpace(req.Value("username")), req.Value("password"))
	if errors.Is(err, ErrBadCredentials) {
		return fail(401, "wrong username or password"), nil
	}
	if err != nil {
		return nil, err
	}
	return setSession(protocol.JSON(200, jsonMap{"message": "logged in"}), token), nil
}

func (a *App) logout(req *protocol.Request) (*protocol.Response, error) {
	a.auth.Logout(req)
	return clearSession(protocol.JSON(200, jsonMap{"message": "logged out"})), nil
}

func (a *App) currentSession(req *protocol.Request) (*protocol.Response, error) {
	u, ok := a.auth.Current(req)
	if !ok {
		return protocol.JSON(200, jsonMap{"user": nil}), nil
	}
	return protocol.JSON(200, jsonMap{"user": u}), nil
}

func (a *App) listPosts(req *protocol.Request) (*protocol.Response, error) {
	limit, offset, ok := pageArgs(req)
	if !ok {
		return fail(400, "limit and offset must be non-negative integers"), nil
	}
	return protocol.JSON(200, jsonMap{"items": a.repo.ListPosts(limit, offset)}), nil
}

func (a *App) searchPosts(req *protocol.Request) (*protocol.Response, error) {
	limit, offset, ok := pageArgs(req)
	if !ok {
		return fail(400, "limit and offset must be non-negative integers"), nil
	}
	q, tag := req.Query["q"], req.Query["tag"]
	return protocol.JSON(200, jsonMap{
		"items":   a.repo.SearchPosts(q, tag, limit, offset),
		"filters": jsonMap{"q": nullable(q), "tag": nullable(tag)},
	}), nil
}

func (a *App) createPost(req *protocol.Request) (*protocol.Response, error) {
	u, deny := a.requireUser(req)
	if deny != nil {
		return deny, nil
	}
	title := strings.TrimSpace(req.Value("title"))
	if title == "" {
		return fail(400, "title is required"), nil
	}

	id, err := a.repo.CreatePost(u.ID, title, req.Value("body"), strings.TrimSpace(req.Value("tags")))
	if err != nil {
		return nil, err
	}
	return protocol.JSON(201, jsonMap{"post_id": id}), nil
}

func (a *App) getPost(req *protocol.Request) (*protocol.Response, error) {
	id, ok := postID(req)
	if !ok {
		return fail(404, "post not found"), nil
	}
	p, err := a.repo.Post(id)
	if errors.Is(err, ErrNotFound) {
		return fail(404, "post not found"), nil
	}
	if err != nil {
		return nil, err
	}
	return protocol.JSON(200, jsonMap{"post": p}), nil
}

func (a *App) updatePost(req *protocol.Request) (*protocol.Response, error) {
	u, deny := a.requireUser(req)
	if deny != nil {
		return deny, nil
	}
	id, ok := postID(req)
	if !ok {
		return fail(403, "no permission or post not found"), nil
	}
	title := strings.TrimSpace(req.Value("title"))
	if title == "" {
		return fail(400, "title is required"), nil
	}

	err := a.repo.UpdatePost(id, u.ID, title, req.Value("body"), strings.TrimSpace(req.Value("tags")))
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		return fail(403, "no permission or post not found"), nil
	}
	if err != nil {
		return nil, err
	}
	return protocol.JSON(200, jsonMap{"message": "updated"}), nil
}

func (a *App) deletePost(req *protocol.Request) (*protocol.Response, error) {
	u, deny := a.requireUser(req)
	if deny != nil {
		return deny, nil
	}
	id, ok := postID(req)
	if !ok {
		return fail(403, "no permission or post not found"), nil
	}

	err := a.repo.DeletePost(id, u.ID)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		return fail(403, "no permission or post not found"), nil
	}
	if err != nil {
		return nil, err
	}
	a.log.Info("post deleted", zap.Int64("post_id", id), zap.Int64("user_id", u.ID))
	return protocol.JSON(200, jsonMap{"message": "deleted"}), nil
}

func (a *App) listComments(req *protocol.Request) (*protocol.Response, error) {
	id, ok := postID(req)
	if !ok {
		return fail(404, "post not found"), nil
	}
	return protocol.JSON(200, jsonMap{"items": a.repo.Comments(id)}), nil
}

func (a *App) addComment(req *protocol.Request) (*protocol.Response, error) {
	u, deny := a.requireUser(req)
	if deny != nil {
		return deny, nil
	}
	body := strings.TrimSpace(req.Value("body"))
	if body == "" {
		return fail(400, "comment body is empty"), nil
	}
	id, ok := postID(req)
	if !ok {
		return fail(404, "post not found"), nil
	}

	var parent *int64
	if v := req.Value("parent_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fail(400, "parent_id must be an integer"), nil
		}
		parent = &n
	}

	cid, err := a.repo.AddComment(id, u.ID, parent, body)
	if errors.Is(err, ErrNotFound) {
		return fail(404, "post or parent comment not found"), nil
	}
	if err != nil {
		return nil, err
	}
	return protocol.JSON(201, jsonMap{"comment_id": cid}), nil
}

func (a *App) networkMetrics(req *protocol.Request) (*protocol.Response, error) {
	out := jsonMap{"metrics": a.metrics.Snapshot()}
	if ps, err := metrics.Process(); err == nil {
		out["process"] = ps
	} else {
		a.log.Debug("process stats unavailable", zap.Error(err))
	}
	return protocol.JSON(200, out), nil
}

func (a *App) prometheus(req *protocol.Request) (*protocol.Response, error) {
	text, err := a.registry.Render()
	if err != nil {
		return nil, err
	}
	return protocol.Bytes(200, metrics.TextContentType, text), nil
}

// blank query values are reported as null
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
