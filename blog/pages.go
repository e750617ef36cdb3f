package blog

import (
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/s00inx/sockblog/server/metrics"
	"github.com/s00inx/sockblog/server/protocol"
)

const siteName = "sockblog"

type page struct {
	Title string
	User  *User
}

type homeData struct {
	page
	Posts      []Post
	Keyword    string
	Tag        string
	Categories []TagCount
}

type postForm struct {
	Title, Body, Tags string
}

type newPostData struct {
	page
	Form  postForm
	Error string
}

type postData struct {
	page
	Post     Post
	Comments []Comment
}

type profileData struct {
	page
	Posts []Post
}

type searchData struct {
	page
	Keyword    string
	Tag        string
	HasQuery   bool
	Results    []Post
	Categories []TagCount
}

type monitorData struct {
	page
	Metrics metrics.Snapshot
	Process *metrics.ProcessStats
}

func (a *App) basePage(req *protocol.Request, title string) page {
	p := page{Title: title}
	if u, ok := a.auth.Current(req); ok {
		p.User = &u
	}
	return p
}

func (a *App) html(status int, name string, data any) (*protocol.Response, error) {
	out, err := a.render.Render(name, data)
	if err != nil {
		return nil, err
	}
	return protocol.Text(status, out), nil
}

func (a *App) home(req *protocol.Request) (*protocol.Response, error) {
	q, tag := req.Query["q"], req.Query["tag"]
	return a.html(200, "home.html", homeData{
		page:       a.basePage(req, siteName),
		Posts:      a.repo.SearchPosts(q, tag, defaultLimit, 0),
		Keyword:    q,
		Tag:        tag,
		Categories: a.repo.Tags(10),
	})
}

func (a *App) loginPage(req *protocol.Request) (*protocol.Response, error) {
	p := a.basePage(req, "Login - "+siteName)
	if p.User != nil {
		return protocol.Redirect("/"), nil
	}
	return a.html(200, "login.html", p)
}

func (a *App) registerPage(req *protocol.Request) (*protocol.Response, error) {
	p := a.basePage(req, "Register - "+siteName)
	if p.User != nil {
		return protocol.Redirect("/"), nil
	}
	return a.html(200, "register.html", p)
}

func (a *App) logoutPage(req *protocol.Request) (*protocol.Response, error) {
	a.auth.Logout(req)
	return clearSession(protocol.Redirect("/")), nil
}

func (a *App) newPostPage(req *protocol.Request) (*protocol.Response, error) {
	p := a.basePage(req, "New post - "+siteName)
	if p.User == nil {
		return protocol.Redirect("/login"), nil
	}
	return a.html(200, "new_post.html", newPostData{page: p})
}

// form post from new_post.html, re-renders the form on error
func (a *App) submitPostPage(req *protocol.Request) (*protocol.Response, error) {
	p := a.basePage(req, "New post - "+siteName)
	if p.User == nil {
		return protocol.Redirect("/login"), nil
	}

	form := postForm{
		Title: strings.TrimSpace(req.Value("title")),
		Body:  strings.TrimSpace(req.Value("body")),
		Tags:  strings.TrimSpace(req.Value("tags")),
	}
	if form.Title == "" {
		return a.html(200, "new_post.html", newPostData{page: p, Form: form, Error: "title is required"})
	}

	id, err := a.repo.CreatePost(p.User.ID, form.Title, form.Body, form.Tags)
	if err != nil {
		a.log.Warn("create post failed", zap.Int64("user_id", p.User.ID), zap.Error(err))
		return a.html(200, "new_post.html", newPostData{page: p, Form: form, Error: "could not create post"})
	}
	return protocol.Redirect("/posts/" + strconv.FormatInt(id, 10)), nil
}

func (a *App) postPage(req *protocol.Request) (*protocol.Response, error) {
	id, ok := postID(req)
	if !ok {
		return protocol.Text(404, "post not found"), nil
	}
	post, err := a.repo.Post(id)
	if errors.Is(err, ErrNotFound) {
		return protocol.Text(404, "post not found"), nil
	}
	if err != nil {
		return nil, err
	}
	return a.html(200, "post.html", postData{
		page:     a.basePage(req, post.Title),
		Post:     post,
		Comments: a.repo.Comments(id),
	})
}

func (a *App) profilePage(req *protocol.Request) (*protocol.Response, error) {
	p := a.basePage(req, "Profile - "+siteName)
	if p.User == nil {
		return protocol.Redirect("/login"), nil
	}
	return a.html(200, "profile.html", profileData{
		page:  p,
		Posts: a.repo.PostsByAuthor(p.User.ID, 50),
	})
}

func (a *App) searchPage(req *protocol.Request) (*protocol.Response, error) {
	d := searchData{
		page:       a.basePage(req, "Search - "+siteName),
		Keyword:    strings.TrimSpace(req.Query["q"]),
		Tag:        strings.TrimSpace(req.Query["tag"]),
		Categories: a.repo.Tags(20),
	}
	d.HasQuery = d.Keyword != "" || d.Tag != ""
	if d.HasQuery {
		d.Results = a.repo.SearchPosts(d.Keyword, d.Tag, 50, 0)
	}
	return a.html(200, "search.html", d)
}

func (a *App) monitorPage(req *protocol.Request) (*protocol.Response, error) {
	d := monitorData{
		page:    a.basePage(req, "Monitor - "+siteName),
		Metrics: a.metrics.Snapshot(),
	}
	if ps, err := metrics.Process(); err == nil {
		d.Process = &ps
	}
	return a.html(200, "monitor.html", d)
}
