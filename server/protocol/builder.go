package protocol

import "strconv"

// ServerName goes into the Server header of every response.
const ServerName = "sockblog/0.1"

// lookup table for reason phrases
// i use flat list instead of map bc codes is fixed
var statusTable = [600]string{
	// 1xx
	100: "Continue",
	101: "Switching Protocols",

	// 2xx
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",

	// 3xx
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",

	// 4xx
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	413: "Payload Too Large",
	429: "Too Many Requests",

	// 5xx
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
}

// phrase per status class for codes missing from the table
var classTable = [6]string{
	1: "Informational",
	2: "Success",
	3: "Redirection",
	4: "Client Error",
	5: "Server Error",
}

// for fast access
var (
	proto = []byte("HTTP/1.1 ")
	colon = []byte(": ")
)

// StatusText gives the reason phrase for code. Codes outside
// 100-599 are reported as 500 by BuildResp, here they get "".
func StatusText(code int) string {
	if code < 100 || code >= len(statusTable) {
		return ""
	}
	if st := statusTable[code]; st != "" {
		return st
	}
	return classTable[code/100]
}

// BuildResp appends the wire form of r to dst and returns it.
// Server and Connection: close are added if the handler did not set them.
func BuildResp(r *Response, dst []byte) []byte {
	code, reason := r.Status, r.Reason
	if code < 100 || code >= len(statusTable) {
		code, reason = 500, ""
	}
	if reason == "" {
		reason = StatusText(code)
	}

	dst = append(dst, proto...)
	dst = strconv.AppendInt(dst, int64(code), 10)
	dst = append(dst, ' ')
	dst = append(dst, reason...)
	dst = append(dst, crlf...)

	for _, h := range r.Headers {
		dst = appendHeader(dst, h.Key, h.Val)
	}
	if !r.Has("Server") {
		dst = appendHeader(dst, "Server", ServerName)
	}
	if !r.Has("Connection") {
		dst = appendHeader(dst, "Connection", "close")
	}

	dst = append(dst, crlf...)
	return append(dst, r.Body...)
}

func appendHeader(dst []byte, key, val string) []byte {
	dst = append(dst, key...)
	dst = append(dst, colon...)
	dst = append(dst, val...)
	return append(dst, crlf...)
}
