// decode raw bytes from socket into Request
// only parser logic, no io
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// for fast access
var (
	crlf   = []byte("\r\n")
	hdrEnd = []byte("\r\n\r\n")
	clh    = []byte("Content-Length")
)

const (
	ctypeJSON = "application/json"
	ctypeForm = "application/x-www-form-urlencoded"
)

// Decode turns one connection's raw bytes into a Request.
// It never fails: truncated or garbage input gives a best-effort Request
// with empty fields, which the router then answers with 404.
func Decode(raw []byte, remoteAddr string) *Request {
	req := &Request{
		Headers:    make(map[string]string),
		Query:      map[string]string{},
		Cookies:    map[string]string{},
		Form:       map[string]string{},
		Params:     map[string]string{},
		RemoteAddr: remoteAddr,
	}

	// no terminator means everything is header block and there is no body
	head, body := raw, []byte(nil)
	if i := bytes.Index(raw, hdrEnd); i != -1 {
		head, body = raw[:i], raw[i+len(hdrEnd):]
	}
	// the read buffer goes back to the pool after the handler, body must outlive it
	req.Body = bytes.Clone(body)

	lines := strings.Split(strings.ToValidUTF8(string(head), ""), "\r\n")

	// request line: METHOD URL VERSION
	fields := strings.Fields(lines[0])
	if len(fields) > 0 {
		req.Method = strings.ToUpper(fields[0])
	}
	var rawURL string
	if len(fields) > 1 {
		rawURL = fields[1]
	}
	if len(fields) > 2 {
		req.Version = fields[2]
	}

	path, rawQuery, _ := strings.Cut(rawURL, "?")
	req.Path = unescapePath(path)
	parsePairs(rawQuery, req.Query)

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, val, _ := strings.Cut(line, ":")
		req.Headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(val)
	}

	if c, ok := req.Headers["cookie"]; ok {
		parseCookies(c, req.Cookies)
	}

	if len(req.Body) > 0 {
		ctype := req.Headers["content-type"]
		switch {
		case strings.Contains(ctype, ctypeJSON):
			req.JSON, req.HasJSON = decodeJSON(req.Body)
		case strings.Contains(ctype, ctypeForm):
			parsePairs(string(req.Body), req.Form)
		}
	}

	return req
}

// Complete reports whether raw holds a whole request: header block terminated
// and Content-Length bytes of body present. Missing or garbage Content-Length
// means no body, like the parser below the router expects.
func Complete(raw []byte) bool {
	end := bytes.Index(raw, hdrEnd)
	if end == -1 {
		return false
	}

	// find content-length header for body
	var contentlen int
	crs := bytes.Index(raw[:end+2], crlf) + 2
	for crs < end {
		lf := bytes.Index(raw[crs:end+2], crlf)
		if lf == -1 {
			break
		}
		line := raw[crs : crs+lf]
		crs += lf + 2

		key, val, ok := bytes.Cut(line, []byte{':'})
		if !ok || !bytes.EqualFold(bytes.TrimSpace(key), clh) {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(val)))
		if err == nil && n > 0 {
			contentlen = n
		}
	}

	return len(raw)-(end+len(hdrEnd)) >= contentlen
}

// path unescape keeps '+' as is
func unescapePath(p string) string {
	return unescape(p, false)
}

// url-encoded k=v pairs, last write wins,
// pairs without '=' or with empty value are dropped
func parsePairs(s string, dst map[string]string) {
	for s != "" {
		var pair string
		pair, s, _ = strings.Cut(s, "&")

		k, v, ok := strings.Cut(pair, "=")
		if !ok || v == "" {
			continue
		}
		dst[unescapeQuery(k)] = unescapeQuery(v)
	}
}

func unescapeQuery(s string) string {
	return unescape(s, true)
}

// every valid %XX is decoded, a broken escape stays as it is and
// doesn't spoil the rest; invalid utf-8 becomes U+FFFD
func unescape(s string, plus bool) string {
	if strings.IndexByte(s, '%') == -1 && (!plus || strings.IndexByte(s, '+') == -1) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%' && i+2 < len(s) && ishex(s[i+1]) && ishex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		case c == '+' && plus:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func ishex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c <= 'F':
		return c - 'A' + 10
	default:
		return c - 'a' + 10
	}
}

// name is trimmed, value is kept verbatim
func parseCookies(h string, dst map[string]string) {
	for _, item := range strings.Split(h, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		name, val, _ := strings.Cut(item, "=")
		dst[strings.TrimSpace(name)] = val
	}
}

// parse failure is "no json", not an error
func decodeJSON(body []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// anything but whitespace after the value is a parse failure too,
	// More() alone misses a stray closing } or ]
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
