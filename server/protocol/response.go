package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	ctypeHTML    = "text/html; charset=utf-8"
	ctypePlain   = "text/plain; charset=utf-8"
	ctypeJSONUTF = "application/json; charset=utf-8"
)

// response header, order is kept on the wire
type Header struct {
	Key, Val string
}

// Response is built by a handler and written exactly once by the server.
// Reason may be left empty, BuildResp fills it from the status table.
type Response struct {
	Status  int
	Reason  string
	Headers []Header
	Body    []byte
}

// Set replaces the first header with the same name or appends a new one.
func (r *Response) Set(key, val string) {
	for i := range r.Headers {
		if strings.EqualFold(r.Headers[i].Key, key) {
			r.Headers[i].Val = val
			return
		}
	}
	r.Headers = append(r.Headers, Header{Key: key, Val: val})
}

func (r *Response) Get(key string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Val
		}
	}
	return ""
}

func (r *Response) Has(key string) bool {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return true
		}
	}
	return false
}

// text body with default html content type
func Text(status int, content string) *Response {
	return TextType(status, content, ctypeHTML)
}

func TextType(status int, content, ctype string) *Response {
	return withBody(status, ctype, []byte(content))
}

// Plain is what the server uses for its own bodies (404, 500).
func Plain(status int, content string) *Response {
	return withBody(status, ctypePlain, []byte(content))
}

// Bytes is a raw body with explicit content type, used for files.
func Bytes(status int, ctype string, body []byte) *Response {
	return withBody(status, ctype, body)
}

// JSON encodes v without html escaping. A value that can't be encoded
// gives the generic internal error response.
func JSON(status int, v any) *Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return InternalError()
	}
	// Encode adds a newline
	body := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return withBody(status, ctypeJSONUTF, body)
}

// 302 with empty body
func Redirect(location string) *Response {
	return &Response{
		Status: 302,
		Headers: []Header{
			{Key: "Location", Val: location},
			{Key: "Content-Length", Val: "0"},
		},
	}
}

func NotFound() *Response {
	return Plain(404, "resource not found")
}

// generic body, no detail about the failure goes to the client
func InternalError() *Response {
	return Plain(500, "internal server error")
}

func withBody(status int, ctype string, body []byte) *Response {
	return &Response{
		Status: status,
		Headers: []Header{
			{Key: "Content-Type", Val: ctype},
			{Key: "Content-Length", Val: strconv.Itoa(len(body))},
		},
		Body: body,
	}
}
