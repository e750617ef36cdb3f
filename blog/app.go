package blog

import (
	"go.uber.org/zap"

	"github.com/s00inx/sockblog/server/metrics"
	"github.com/s00inx/sockblog/server/router"
)

// App owns the collaborators every handler needs.
type App struct {
	repo     Repository
	auth     *Auth
	render   *Renderer
	metrics  *metrics.Collector
	registry *metrics.Registry
	log      *zap.Logger
}

type Option func(*App)

func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithRegistry exposes GET /metrics in prometheus text format.
func WithRegistry(r *metrics.Registry) Option {
	return func(a *App) { a.registry = r }
}

func New(repo Repository, auth *Auth, mc *metrics.Collector, opts ...Option) (*App, error) {
	render, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	a := &App{
		repo:    repo,
		auth:    auth,
		render:  render,
		metrics: mc,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Routes registers every page and api route. Order matters, the first
// match wins, so fixed paths go before their {param} siblings.
func (a *App) Routes(r *router.HTTPRouter) {
	// pages
	r.Get("/", a.home)
	r.Get("/login", a.loginPage)
	r.Get("/register", a.registerPage)
	r.Get("/logout", a.logoutPage)
	r.Get("/posts/new", a.newPostPage)
	r.Post("/posts/new", a.submitPostPage)
	r.Get("/posts/{post_id}", a.postPage)
	r.Get("/profile", a.profilePage)
	r.Get("/search", a.searchPage)
	r.Get("/monitor", a.monitorPage)

	// auth
	r.Post("/api/register", a.register)
	r.Post("/api/login", a.login)
	r.Post("/api/logout", a.logout)
	r.Get("/api/session", a.currentSession)

	// posts
	r.Get("/api/posts", a.listPosts)
	r.Get("/api/posts/search", a.searchPosts)
	r.Post("/api/posts", a.createPost)
	r.Get("/api/posts/{post_id}", a.getPost)
	r.Post("/api/posts/{post_id}/edit", a.updatePost)
	r.Post("/api/posts/{post_id}/delete", a.deletePost)

	// comments
	r.Get("/api/posts/{post_id}/comments", a.listComments)
	r.Post("/api/posts/{post_id}/comments", a.addComment)

	// monitor
	r.Get("/api/monitor/network", a.networkMetrics)
	if a.registry != nil {
		r.Get("/metrics", a.prometheus)
	}
}
