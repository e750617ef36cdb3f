package protocol

import "strings"

// decoded request, built once per connection
// only Params is written after Decode, by the router
type Request struct {
	Method  string
	Path    string // percent-decoded
	Version string

	Headers map[string]string // lower-cased names
	Query   map[string]string
	Cookies map[string]string

	Body    []byte // own copy, safe to keep after the handler returns
	Form    map[string]string // x-www-form-urlencoded body
	JSON    any               // application/json body, valid only if HasJSON
	HasJSON bool

	Params     map[string]string // path params, filled by router
	RemoteAddr string
}

// get header by name, case-insensitive
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

func (r *Request) Param(name string) string {
	return r.Params[name]
}

func (r *Request) Cookie(name string) string {
	return r.Cookies[name]
}

// Value looks key up in a JSON object body first and in the form body second.
// Non-string JSON scalars are rendered the way they appeared in the payload.
func (r *Request) Value(key string) string {
	if obj, ok := r.JSON.(map[string]any); r.HasJSON && ok {
		if v, ok := obj[key]; ok && v != nil {
			return scalarString(v)
		}
		return ""
	}
	return r.Form[key]
}
