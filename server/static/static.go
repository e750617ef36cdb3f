// Package static serves files under a URL prefix from a local directory.
package static

import (
	"errors"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/s00inx/sockblog/server/protocol"
)

const (
	DefaultPrefix = "/static/"
	fallbackType  = "application/octet-stream"
)

// Responder maps Prefix+name to Root/name.
type Responder struct {
	Root   string
	Prefix string
}

func New(root string) *Responder {
	return &Responder{Root: root, Prefix: DefaultPrefix}
}

// Match reports whether urlPath belongs to this responder.
func (s *Responder) Match(urlPath string) bool {
	return strings.HasPrefix(urlPath, s.Prefix)
}

// Serve returns the file bytes or 404. A path that would leave Root is
// treated as missing. Read errors other than not-exist are returned.
func (s *Responder) Serve(urlPath string) (*protocol.Response, error) {
	rel := strings.TrimPrefix(urlPath, s.Prefix)
	// clean as rooted url path so ".." can't climb over Root
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if rel == "" {
		return notFound(), nil
	}

	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return notFound(), nil
		}
		return nil, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}

	ctype := mime.TypeByExtension(filepath.Ext(full))
	if ctype == "" {
		ctype = fallbackType
	}
	return protocol.Bytes(200, ctype, data), nil
}

func notFound() *protocol.Response {
	return protocol.Plain(404, "static resource not found")
}
