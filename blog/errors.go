package blog

import "errors"

var (
	ErrNotFound       = errors.New("blog: not found")
	ErrForbidden      = errors.New("blog: not the author")
	ErrUserExists     = errors.New("blog: username taken")
	ErrBadCredentials = errors.New("blog: wrong username or password")
)
