package blog

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/s00inx/sockblog/server/protocol"
	"github.com/s00inx/sockblog/server/session"
)

// SessionCookie carries the session token.
const SessionCookie = "session_id"

// UserRepo is the part of Repository that Auth needs.
type UserRepo interface {
	CreateUser(username, nickname, email string, hash []byte) (int64, error)
	UserByName(username string) (User, error)
	UserByID(id int64) (User, error)
}

// Auth checks passwords and maps session cookies to users.
type Auth struct {
	users    UserRepo
	sessions *session.Store
	cost     int
}

type AuthOption func(*Auth)

// WithCost sets the bcrypt cost, tests use bcrypt.MinCost.
func WithCost(cost int) AuthOption {
	return func(a *Auth) { a.cost = cost }
}

func NewAuth(users UserRepo, sessions *session.Store, opts ...AuthOption) *Auth {
	a := &Auth{users: users, sessions: sessions, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Auth) Register(username, password, nickname, email string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return 0, fmt.Errorf("blog: hash password: %w", err)
	}
	return a.users.CreateUser(username, nickname, email, hash)
}

// Login returns a fresh session token or ErrBadCredentials.
func (a *Auth) Login(username, password string) (string, error) {
	u, err := a.users.UserByName(username)
	if errors.Is(err, ErrNotFound) {
		return "", ErrBadCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return a.sessions.Create(u.ID)
}

// Logout drops the session named by the request cookie, if any.
func (a *Auth) Logout(req *protocol.Request) {
	if token := req.Cookie(SessionCookie); token != "" {
		a.sessions.Delete(token)
	}
}

// Current resolves the request cookie. Missing, unknown and expired
// tokens all mean anonymous.
func (a *Auth) Current(req *protocol.Request) (User, bool) {
	token := req.Cookie(SessionCookie)
	if token == "" {
		return User{}, false
	}
	id, ok := a.sessions.UserID(token)
	if !ok {
		return User{}, false
	}
	u, err := a.users.UserByID(id)
	if err != nil {
		return User{}, false
	}
	return u, true
}

func setSession(resp *protocol.Response, token string) *protocol.Response {
	resp.Set("Set-Cookie", SessionCookie+"="+token+"; Path=/; HttpOnly")
	return resp
}

func clearSession(resp *protocol.Response) *protocol.Response {
	resp.Set("Set-Cookie", SessionCookie+"=; Path=/; HttpOnly; Max-Age=0")
	return resp
}
